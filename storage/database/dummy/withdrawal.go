package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/withdrawal"
)

type withdrawalRepository struct {
	db *withdrawalTable
}

var _ withdrawal.Repository = (*withdrawalRepository)(nil) // interface compliance check

func NewWithdrawalRepository(db *DB) *withdrawalRepository {
	return &withdrawalRepository{db: db.withdrawal}
}

func (repo *withdrawalRepository) GetWithdrawalByID(ctx context.Context, id string, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if wd, ok := repo.db.table[id]; ok {
		return *wd, nil
	}
	return withdrawal.Withdrawal{}, withdrawal.ErrNotFound
}

func (repo *withdrawalRepository) GetPendingWithdrawal(ctx context.Context, studentID, date string, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, wd := range repo.db.table {
		if wd.StudentID == studentID && wd.Date == date && wd.Status == withdrawal.StatusPending {
			return *wd, nil
		}
	}
	return withdrawal.Withdrawal{}, withdrawal.ErrNotFound
}

func (repo *withdrawalRepository) CreateWithdrawal(ctx context.Context, wd withdrawal.Withdrawal, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	wd.ID = uuid.New().String()
	repo.db.table[wd.ID] = &wd
	return wd, nil
}

func (repo *withdrawalRepository) DecideWithdrawal(ctx context.Context, id string, status withdrawal.Status, decidedBy, observations string, decidedAt time.Time, exec ...core.DBExecutor) (withdrawal.Withdrawal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	wd, ok := repo.db.table[id]
	if !ok {
		return withdrawal.Withdrawal{}, withdrawal.ErrNotFound
	}
	if wd.Status != withdrawal.StatusPending {
		return withdrawal.Withdrawal{}, withdrawal.ErrAlreadyDecided
	}
	wd.Status = status
	wd.DecidedBy = null.StringFrom(decidedBy)
	wd.DecidedAt = null.TimeFrom(decidedAt)
	wd.Observations = null.NewString(observations, observations != "")
	wd.UpdatedAt = decidedAt
	return *wd, nil
}

func (repo *withdrawalRepository) FilterWithdrawals(ctx context.Context, filter withdrawal.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]withdrawal.Withdrawal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var withdrawals []withdrawal.Withdrawal
	for _, wd := range repo.db.table {
		if filter.Date != "" && wd.Date != filter.Date {
			continue
		}
		if filter.StudentID != "" && wd.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && wd.Status != filter.Status {
			continue
		}
		withdrawals = append(withdrawals, *wd)
	}
	sort.Slice(withdrawals, func(i, j int) bool { return withdrawals[i].RequestedAt.After(withdrawals[j].RequestedAt) })
	return withdrawals, nil
}
