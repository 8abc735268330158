package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
)

type scheduleRepository struct {
	db *scheduleTable
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db.schedule}
}

func scheduleKey(institutionID, gradeSectionID, session string) string {
	return strings.Join([]string{institutionID, gradeSectionID, session}, "|")
}

// AddClassSchedule seeds a schedule, assigning an ID if absent.
func (repo *scheduleRepository) AddClassSchedule(cs schedule.ClassSchedule) schedule.ClassSchedule {
	repo.db.Lock()
	defer repo.db.Unlock()

	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	repo.db.table[scheduleKey(cs.InstitutionID, cs.GradeSectionID, cs.Session)] = &cs
	return cs
}

func (repo *scheduleRepository) GetClassSchedule(ctx context.Context, institutionID, gradeSectionID, session string, exec ...core.DBExecutor) (schedule.ClassSchedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cs, ok := repo.db.table[scheduleKey(institutionID, gradeSectionID, session)]; ok {
		return *cs, nil
	}
	return schedule.ClassSchedule{}, schedule.ErrNotFound
}
