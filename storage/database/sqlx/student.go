package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentRow struct {
	ID             string    `db:"id"`
	InstitutionID  string    `db:"institution_id"`
	NationalID     string    `db:"national_id"`
	EnrollmentCode string    `db:"enrollment_code"`
	QRToken        string    `db:"qr_token"`
	FirstName      string    `db:"first_name"`
	LastName       string    `db:"last_name"`
	GradeSectionID string    `db:"grade_section_id"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r studentRow) unpack() student.Student {
	return student.Student{
		ID:             r.ID,
		InstitutionID:  r.InstitutionID,
		NationalID:     r.NationalID,
		EnrollmentCode: r.EnrollmentCode,
		QRToken:        r.QRToken,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		GradeSectionID: r.GradeSectionID,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type guardianRow struct {
	ID        string `db:"id"`
	StudentID string `db:"student_id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM student WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	return row.unpack(), nil
}

func (repo studentRepository) GetActiveStudentByCode(
	ctx context.Context, institutionID string, field student.CodeField, code string, fold bool, exec ...core.DBExecutor,
) (student.Student, error) {
	match := string(field) + " = $2"
	if fold {
		match = "LOWER(" + string(field) + ") = LOWER($2)"
	}
	// LIMIT 2 so an ambiguous match is detectable without scanning the table
	var rows []studentRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows,
		`SELECT * FROM student WHERE institution_id = $1 AND `+match+` AND is_active LIMIT 2`,
		institutionID, code)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "matching student code")
	}
	switch len(rows) {
	case 0:
		return student.Student{}, student.ErrNotFound
	case 1:
		return rows[0].unpack(), nil
	default:
		return student.Student{}, student.ErrAmbiguousMatch
	}
}

func (repo studentRepository) QueryEnrolledStudents(ctx context.Context, institutionID, gradeSectionID string, exec ...core.DBExecutor) ([]student.Student, error) {
	var rows []studentRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows,
		`SELECT * FROM student WHERE institution_id = $1 AND grade_section_id = $2 AND is_active ORDER BY last_name, first_name`,
		institutionID, gradeSectionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	students := make([]student.Student, len(rows))
	for i, r := range rows {
		students[i] = r.unpack()
	}
	return students, nil
}

func (repo studentRepository) QueryGuardians(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]student.Guardian, error) {
	var rows []guardianRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows,
		`SELECT * FROM guardian WHERE student_id = $1 ORDER BY name`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}
	guardians := make([]student.Guardian, len(rows))
	for i, r := range rows {
		guardians[i] = student.Guardian(r)
	}
	return guardians, nil
}
