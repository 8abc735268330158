// Package schedule exposes the class timetable the engine reads. Timetable
// CRUD belongs to an external collaborator; only the lookup surface lives here.
package schedule

import (
	"context"
	"errors"

	"github.com/trezcool/mahudhurio/core"
)

var ErrNotFound = errors.New("class schedule not found")

// ClassSchedule is the scheduled start/end of a grade-section's session,
// wall-clock in institution-local time, plus the on-time tolerance.
type ClassSchedule struct {
	ID             string `json:"id"`
	InstitutionID  string `json:"institution_id"`
	GradeSectionID string `json:"grade_section_id"`
	Session        string `json:"session"` // AM | PM
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	ToleranceMin   int    `json:"tolerance_min"`
}

func (cs ClassSchedule) Start() (core.ClockTime, error) {
	return core.ParseClockTime(cs.StartTime)
}

func (cs ClassSchedule) End() (core.ClockTime, error) {
	return core.ParseClockTime(cs.EndTime)
}

type Repository interface {
	// GetClassSchedule returns the schedule of a grade-section's session.
	GetClassSchedule(ctx context.Context, institutionID, gradeSectionID, session string, exec ...core.DBExecutor) (ClassSchedule, error)
}
