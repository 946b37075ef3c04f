package core

import (
	"context"
	"fmt"
	"time"

	"ritual/pkg/domain"
)

// DayDateUniqueRule warns when a newly created day falls on the same UTC
// calendar date as an existing one. Duplicate dates are allowed.
func DayDateUniqueRule() domain.Rule {
	return dayDateUniqueRule{}
}

type dayDateUniqueRule struct{}

func (dayDateUniqueRule) Name() string { return "day_date_unique" }

func (dayDateUniqueRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var created []domain.Day
	for _, change := range changes {
		if change.Entity != domain.EntityDay || change.Action != domain.ActionCreate {
			continue
		}
		if day, ok := change.After.(domain.Day); ok {
			created = append(created, day)
		}
	}
	if len(created) == 0 {
		return res, nil
	}
	days := view.ListDays()
	for _, day := range created {
		for _, other := range days {
			if other.ID == day.ID || !sameDate(other.Date, day.Date) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "day_date_unique",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("day %s shares date %s with day %s", day.ID, day.Date.Format("2006-01-02"), other.ID),
				Entity:   domain.EntityDay,
				EntityID: day.ID,
			})
			break
		}
	}
	return res, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
