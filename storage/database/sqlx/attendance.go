package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type gateRecordRow struct {
	ID            string    `db:"id"`
	InstitutionID string    `db:"institution_id"`
	StudentID     string    `db:"student_id"`
	Date          string    `db:"date"`
	IngressTime   null.Time `db:"ingress_time"`
	State         string    `db:"state"`
	RecordedBy    string    `db:"recorded_by"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r gateRecordRow) unpack() attendance.GateRecord {
	return attendance.GateRecord{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		StudentID:     r.StudentID,
		Date:          r.Date,
		IngressTime:   r.IngressTime,
		State:         attendance.StateCode(r.State),
		RecordedBy:    r.RecordedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type recordRow struct {
	ID             string    `db:"id"`
	InstitutionID  string    `db:"institution_id"`
	StudentID      string    `db:"student_id"`
	GradeSectionID string    `db:"grade_section_id"`
	Date           string    `db:"date"`
	Session        string    `db:"session"`
	State          string    `db:"state"`
	Source         string    `db:"source"`
	RecordedBy     string    `db:"recorded_by"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r recordRow) unpack() attendance.Record {
	return attendance.Record{
		ID:             r.ID,
		InstitutionID:  r.InstitutionID,
		StudentID:      r.StudentID,
		GradeSectionID: r.GradeSectionID,
		Date:           r.Date,
		Session:        attendance.Session(r.Session),
		State:          attendance.StateCode(r.State),
		Source:         attendance.Source(r.Source),
		RecordedBy:     r.RecordedBy,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type stateHistoryRow struct {
	ID        string    `db:"id"`
	RecordID  string    `db:"record_id"`
	State     string    `db:"state"`
	ChangedBy string    `db:"changed_by"`
	ChangedAt time.Time `db:"changed_at"`
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) GetGateRecord(ctx context.Context, studentID, date string, exec ...core.DBExecutor) (attendance.GateRecord, error) {
	var row gateRecordRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM gate_record WHERE student_id = $1 AND date = $2`, studentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.GateRecord{}, attendance.ErrNotFound
		}
		return attendance.GateRecord{}, errors.Wrap(err, "getting gate record")
	}
	return row.unpack(), nil
}

func (repo attendanceRepository) CreateGateRecord(ctx context.Context, rec attendance.GateRecord, exec ...core.DBExecutor) (attendance.GateRecord, error) {
	rec.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO gate_record (id, institution_id, student_id, date, ingress_time, state, recorded_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.InstitutionID, rec.StudentID, rec.Date, rec.IngressTime, rec.State, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.GateRecord{}, attendance.ErrRecordExists
		}
		return attendance.GateRecord{}, errors.Wrap(err, "creating gate record")
	}
	return rec, nil
}

func (repo attendanceRepository) UpdateGateRecordState(ctx context.Context, id string, state attendance.StateCode, recordedBy string, updatedAt time.Time, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx,
		`UPDATE gate_record SET state = $2, recorded_by = $3, updated_at = $4 WHERE id = $1`,
		id, state, recordedBy, updatedAt)
	if err != nil {
		return errors.Wrap(err, "updating gate record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrNotFound
	}
	return nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, studentID, date string, session attendance.Session, exec ...core.DBExecutor) (attendance.Record, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM attendance_record WHERE student_id = $1 AND date = $2 AND session = $3`,
		studentID, date, session)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "getting attendance record")
	}
	return row.unpack(), nil
}

func (repo attendanceRepository) GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM attendance_record WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "getting attendance record")
	}
	return row.unpack(), nil
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	rec.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO attendance_record (id, institution_id, student_id, grade_section_id, date, session, state, source, recorded_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.InstitutionID, rec.StudentID, rec.GradeSectionID, rec.Date, rec.Session, rec.State, rec.Source, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrRecordExists
		}
		return attendance.Record{}, errors.Wrap(err, "creating attendance record")
	}
	return rec, nil
}

func (repo attendanceRepository) UpdateRecordState(ctx context.Context, id string, state attendance.StateCode, source attendance.Source, recordedBy string, updatedAt time.Time, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx,
		`UPDATE attendance_record SET state = $2, source = $3, recorded_by = $4, updated_at = $5 WHERE id = $1`,
		id, state, source, recordedBy, updatedAt)
	if err != nil {
		return errors.Wrap(err, "updating attendance record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrNotFound
	}
	return nil
}

func (repo attendanceRepository) CreateStateHistory(ctx context.Context, hist attendance.StateHistory, exec ...core.DBExecutor) (attendance.StateHistory, error) {
	hist.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO attendance_state_history (id, record_id, state, changed_by, changed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		hist.ID, hist.RecordID, hist.State, hist.ChangedBy, hist.ChangedAt)
	if err != nil {
		return attendance.StateHistory{}, errors.Wrap(err, "creating state history")
	}
	return hist, nil
}

func (repo attendanceRepository) QueryStateHistory(ctx context.Context, recordID string, exec ...core.DBExecutor) ([]attendance.StateHistory, error) {
	var rows []stateHistoryRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows,
		`SELECT * FROM attendance_state_history WHERE record_id = $1 ORDER BY changed_at, id`, recordID)
	if err != nil {
		return nil, errors.Wrap(err, "querying state history")
	}
	hists := make([]attendance.StateHistory, len(rows))
	for i, r := range rows {
		hists[i] = attendance.StateHistory{
			ID:        r.ID,
			RecordID:  r.RecordID,
			State:     attendance.StateCode(r.State),
			ChangedBy: r.ChangedBy,
			ChangedAt: r.ChangedAt.UTC(),
		}
	}
	return hists, nil
}

func (repo attendanceRepository) FilterRecords(ctx context.Context, filter attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Record, error) {
	query := `SELECT * FROM attendance_record WHERE 1=1`
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Date != "" {
		query += ` AND date = ` + arg(filter.Date)
	}
	if filter.GradeSectionID != "" {
		query += ` AND grade_section_id = ` + arg(filter.GradeSectionID)
	}
	if filter.Session != "" {
		query += ` AND session = ` + arg(string(filter.Session))
	}
	if filter.StudentID != "" {
		query += ` AND student_id = ` + arg(filter.StudentID)
	}
	if filter.State != "" {
		query += ` AND state = ` + arg(string(filter.State))
	}

	query += ` ORDER BY `
	if len(ordering) > 0 {
		for i, ord := range ordering {
			if i > 0 {
				query += `, `
			}
			query += ord.String()
		}
	} else {
		query += `date DESC, session, student_id`
	}

	var rows []recordRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering attendance records")
	}
	records := make([]attendance.Record, len(rows))
	for i, r := range rows {
		records[i] = r.unpack()
	}
	return records, nil
}
