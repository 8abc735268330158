package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
)

type scheduleRow struct {
	ID             string `db:"id"`
	InstitutionID  string `db:"institution_id"`
	GradeSectionID string `db:"grade_section_id"`
	Session        string `db:"session"`
	StartTime      string `db:"start_time"`
	EndTime        string `db:"end_time"`
	ToleranceMin   int    `db:"tolerance_min"`
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sqlx.DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo scheduleRepository) GetClassSchedule(ctx context.Context, institutionID, gradeSectionID, session string, exec ...core.DBExecutor) (schedule.ClassSchedule, error) {
	var row scheduleRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM class_schedule WHERE institution_id = $1 AND grade_section_id = $2 AND session = $3`,
		institutionID, gradeSectionID, session)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.ClassSchedule{}, schedule.ErrNotFound
		}
		return schedule.ClassSchedule{}, errors.Wrap(err, "getting class schedule")
	}
	return schedule.ClassSchedule(row), nil
}
