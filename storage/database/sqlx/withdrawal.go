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
	"github.com/trezcool/mahudhurio/core/withdrawal"
)

type withdrawalRow struct {
	ID            string      `db:"id"`
	InstitutionID string      `db:"institution_id"`
	StudentID     string      `db:"student_id"`
	Date          string      `db:"date"`
	Reason        string      `db:"reason"`
	RequestedBy   string      `db:"requested_by"`
	RequestedAt   time.Time   `db:"requested_at"`
	Status        string      `db:"status"`
	DecidedBy     null.String `db:"decided_by"`
	DecidedAt     null.Time   `db:"decided_at"`
	Observations  null.String `db:"observations"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r withdrawalRow) unpack() withdrawal.Withdrawal {
	return withdrawal.Withdrawal{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		StudentID:     r.StudentID,
		Date:          r.Date,
		Reason:        r.Reason,
		RequestedBy:   r.RequestedBy,
		RequestedAt:   r.RequestedAt.UTC(),
		Status:        withdrawal.Status(r.Status),
		DecidedBy:     r.DecidedBy,
		DecidedAt:     r.DecidedAt,
		Observations:  r.Observations,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type withdrawalRepository struct {
	db *sqlx.DB
}

var _ withdrawal.Repository = (*withdrawalRepository)(nil) // interface compliance check

func NewWithdrawalRepository(db *sqlx.DB) *withdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (repo withdrawalRepository) GetWithdrawalByID(ctx context.Context, id string, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	var row withdrawalRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM withdrawal WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return withdrawal.Withdrawal{}, withdrawal.ErrNotFound
		}
		return withdrawal.Withdrawal{}, errors.Wrap(err, "getting withdrawal")
	}
	return row.unpack(), nil
}

func (repo withdrawalRepository) GetPendingWithdrawal(ctx context.Context, studentID, date string, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	var row withdrawalRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT * FROM withdrawal WHERE student_id = $1 AND date = $2 AND status = $3`,
		studentID, date, withdrawal.StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return withdrawal.Withdrawal{}, withdrawal.ErrNotFound
		}
		return withdrawal.Withdrawal{}, errors.Wrap(err, "getting pending withdrawal")
	}
	return row.unpack(), nil
}

func (repo withdrawalRepository) CreateWithdrawal(ctx context.Context, wd withdrawal.Withdrawal, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	wd.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO withdrawal (id, institution_id, student_id, date, reason, requested_by, requested_at, status, decided_by, decided_at, observations, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		wd.ID, wd.InstitutionID, wd.StudentID, wd.Date, wd.Reason, wd.RequestedBy, wd.RequestedAt,
		wd.Status, wd.DecidedBy, wd.DecidedAt, wd.Observations, wd.CreatedAt, wd.UpdatedAt)
	if err != nil {
		return withdrawal.Withdrawal{}, errors.Wrap(err, "creating withdrawal")
	}
	return wd, nil
}

func (repo withdrawalRepository) DecideWithdrawal(ctx context.Context, id string, status withdrawal.Status, decidedBy, observations string, decidedAt time.Time, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	// the status guard makes decisions write-once even across instances
	var row withdrawalRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`UPDATE withdrawal SET status = $2, decided_by = $3, observations = $4, decided_at = $5, updated_at = $5
		 WHERE id = $1 AND status = $6
		 RETURNING *`,
		id, status, decidedBy, null.NewString(observations, observations != ""), decidedAt, withdrawal.StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, gerr := repo.GetWithdrawalByID(ctx, id, exec...); gerr != nil {
				return withdrawal.Withdrawal{}, gerr
			}
			return withdrawal.Withdrawal{}, withdrawal.ErrAlreadyDecided
		}
		return withdrawal.Withdrawal{}, errors.Wrap(err, "deciding withdrawal")
	}
	return row.unpack(), nil
}

func (repo withdrawalRepository) FilterWithdrawals(ctx context.Context, filter withdrawal.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]withdrawal.Withdrawal, error) {
	query := `SELECT * FROM withdrawal WHERE 1=1`
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Date != "" {
		query += ` AND date = ` + arg(filter.Date)
	}
	if filter.StudentID != "" {
		query += ` AND student_id = ` + arg(filter.StudentID)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
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
		query += `requested_at DESC`
	}

	var rows []withdrawalRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering withdrawals")
	}
	withdrawals := make([]withdrawal.Withdrawal, len(rows))
	for i, r := range rows {
		withdrawals[i] = r.unpack()
	}
	return withdrawals, nil
}
