package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"ritual/internal/infra/persistence/memory"
	"ritual/pkg/domain"
)

// stateView adapts a bare State to domain.RuleView.
type stateView struct{ state domain.State }

func (v stateView) ListDays() []domain.Day                      { return v.state.DaysByDate() }
func (v stateView) ListHabits() []domain.Habit                  { return v.state.ListHabits() }
func (v stateView) FindDay(id uuid.UUID) (domain.Day, bool)     { return v.state.FindDay(id) }
func (v stateView) FindHabit(id uuid.UUID) (domain.Habit, bool) { return v.state.FindHabit(id) }

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	rules := NewDefaultRulesEngine().Rules()
	if len(rules) != 2 || rules[0].Name() != "habit_ref_integrity" || rules[1].Name() != "day_date_unique" {
		t.Fatalf("unexpected rules %v", rules)
	}
	if len(NewRulesEngine().Rules()) != 0 {
		t.Fatalf("expected empty engine")
	}
}

func TestHabitRefIntegrityBlocksOrphanRef(t *testing.T) {
	state := domain.NewState()
	day, _ := state.AddDay(time.Now())
	orphan := uuid.New()
	refs := domain.NewHabitRefs()
	if err := refs.Insert(domain.HabitRef{ID: orphan, Name: "ghost"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	day.Habits = refs
	state.Days[day.ID] = day

	res, err := HabitRefIntegrityRule().Evaluate(context.Background(), stateView{state},
		[]domain.Change{{Entity: domain.EntityDay, Action: domain.ActionUpdate, After: day}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() || len(res.Violations) != 1 || res.Violations[0].EntityID != orphan {
		t.Fatalf("expected one blocking violation for the orphan, got %+v", res.Violations)
	}
}

func TestHabitRefIntegrityIgnoresUntouchedDays(t *testing.T) {
	state := domain.NewState()
	day, _ := state.AddDay(time.Now())
	refs := domain.NewHabitRefs()
	_ = refs.Insert(domain.HabitRef{ID: uuid.New(), Name: "ghost"})
	day.Habits = refs
	state.Days[day.ID] = day

	res, err := HabitRefIntegrityRule().Evaluate(context.Background(), stateView{state},
		[]domain.Change{{Entity: domain.EntityHabit, Action: domain.ActionCreate, After: domain.Habit{ID: uuid.New(), Title: "x"}}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("only changed days are checked, got %+v", res.Violations)
	}
}

func TestHabitRefIntegrityChecksOnlyAddedRefs(t *testing.T) {
	state := domain.NewState()
	day, _ := state.AddDay(time.Now())
	stale := uuid.New()
	refs := domain.NewHabitRefs()
	if err := refs.Insert(domain.HabitRef{ID: stale, Name: "ghost"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	day.Habits = refs
	state.Days[day.ID] = day
	before, _ := state.FindDay(day.ID)

	habit, err := state.AddHabitToDay(mustTitle(t, "Read"), day.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	after, _ := state.FindDay(day.ID)
	changes := []domain.Change{
		{Entity: domain.EntityHabit, Action: domain.ActionCreate, After: habit},
		{Entity: domain.EntityDay, Action: domain.ActionUpdate, Before: before, After: after},
	}
	res, err := HabitRefIntegrityRule().Evaluate(context.Background(), stateView{state}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("pre-existing ref must not be re-checked, got %+v", res.Violations)
	}

	// a ref added in this change without its habit is still caught
	delete(state.Habits, habit.ID)
	res, err = HabitRefIntegrityRule().Evaluate(context.Background(), stateView{state}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() || len(res.Violations) != 1 || res.Violations[0].EntityID != habit.ID {
		t.Fatalf("expected one violation for the new ref, got %+v", res.Violations)
	}
}

type blockTitleRule struct{ title string }

func (blockTitleRule) Name() string { return "block_title" }

func (r blockTitleRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if habit, ok := change.After.(domain.Habit); ok && habit.Title == r.title {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  "title not allowed",
				Entity:   domain.EntityHabit,
				EntityID: habit.ID,
			})
		}
	}
	return res, nil
}

func TestBlockingRuleRollsBackTransaction(t *testing.T) {
	ctx := context.Background()
	engine := NewDefaultRulesEngine()
	engine.Register(blockTitleRule{title: "Forbidden"})
	audit := &captureAuditRecorder{}
	svc := NewService(memory.NewStore(engine), WithAuditRecorder(audit))
	day, _, err := svc.AddDay(ctx, time.Now())
	if err != nil {
		t.Fatalf("add day: %v", err)
	}
	before := svc.Snapshot()

	_, res, err := svc.AddHabitToDay(ctx, mustTitle(t, "Forbidden"), day.ID)
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || !res.HasBlocking() {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if domain.ErrorKind(err) != "rule_violation" {
		t.Fatalf("unexpected kind %s", domain.ErrorKind(err))
	}
	if !svc.Snapshot().Equal(before) {
		t.Fatalf("blocked transaction must not commit")
	}
	if !audit.has(OpAddHabitToDay, AuditStatusError, nil) {
		t.Fatalf("expected audit error entry")
	}
	if _, _, err := svc.AddHabitToDay(ctx, mustTitle(t, "Allowed"), day.ID); err != nil {
		t.Fatalf("unrelated habit must commit: %v", err)
	}
}

func TestDayDateUniqueWarnsOnSameDate(t *testing.T) {
	state := domain.NewState()
	first, _ := state.AddDay(time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC))
	second, _ := state.AddDay(time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC))
	third, _ := state.AddDay(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	rule := DayDateUniqueRule()

	res, _ := rule.Evaluate(context.Background(), stateView{state},
		[]domain.Change{{Entity: domain.EntityDay, Action: domain.ActionCreate, After: second}})
	if len(res.Violations) != 1 || res.Violations[0].Severity != domain.SeverityWarn || res.Violations[0].EntityID != second.ID {
		t.Fatalf("expected one warning for %s, got %+v", second.ID, res.Violations)
	}
	res, _ = rule.Evaluate(context.Background(), stateView{state},
		[]domain.Change{{Entity: domain.EntityDay, Action: domain.ActionCreate, After: third}})
	if len(res.Violations) != 0 {
		t.Fatalf("different dates must not warn: %+v", res.Violations)
	}
	res, _ = rule.Evaluate(context.Background(), stateView{state},
		[]domain.Change{{Entity: domain.EntityDay, Action: domain.ActionUpdate, After: first}})
	if len(res.Violations) != 0 {
		t.Fatalf("updates must not warn: %+v", res.Violations)
	}
}
