package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ritual/pkg/domain"
)

// HabitRefIntegrityRule blocks a commit when a day gains a habit ref that
// does not resolve to a habit with the same id. Refs the day already held
// before the transaction are not re-checked.
func HabitRefIntegrityRule() domain.Rule {
	return habitRefIntegrityRule{}
}

type habitRefIntegrityRule struct{}

func (habitRefIntegrityRule) Name() string { return "habit_ref_integrity" }

func (habitRefIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	added := make(map[uuid.UUID]map[uuid.UUID]struct{})
	var order []uuid.UUID
	for _, change := range changes {
		if change.Entity != domain.EntityDay {
			continue
		}
		after, ok := change.After.(domain.Day)
		if !ok {
			continue
		}
		before, _ := change.Before.(domain.Day)
		for id := range after.Habits.All() {
			if before.Habits.Has(id) {
				continue
			}
			if added[after.ID] == nil {
				added[after.ID] = make(map[uuid.UUID]struct{})
				order = append(order, after.ID)
			}
			added[after.ID][id] = struct{}{}
		}
	}
	for _, dayID := range order {
		// the view holds the final state of the transaction
		day, ok := view.FindDay(dayID)
		if !ok {
			continue
		}
		for id, ref := range day.Habits.All() {
			if _, fresh := added[dayID][id]; !fresh {
				continue
			}
			if ref.ID != id {
				res.Violations = append(res.Violations, habitRefViolation(id, fmt.Sprintf("habit ref keyed %s in day %s carries id %s", id, day.ID, ref.ID)))
				continue
			}
			if _, ok := view.FindHabit(id); !ok {
				res.Violations = append(res.Violations, habitRefViolation(id, fmt.Sprintf("day %s references missing habit %s", day.ID, id)))
			}
		}
	}
	return res, nil
}

func habitRefViolation(id uuid.UUID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "habit_ref_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityHabitRef,
		EntityID: id,
	}
}
