package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func gateKey(studentID, date string) string {
	return strings.Join([]string{studentID, date}, "|")
}

func recordKey(studentID, date string, session attendance.Session) string {
	return strings.Join([]string{studentID, date, string(session)}, "|")
}

func (repo *attendanceRepository) GetGateRecord(ctx context.Context, studentID, date string, exec ...core.DBExecutor) (attendance.GateRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.gate[gateKey(studentID, date)]; ok {
		return *rec, nil
	}
	return attendance.GateRecord{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) CreateGateRecord(ctx context.Context, rec attendance.GateRecord, exec ...core.DBExecutor) (attendance.GateRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := gateKey(rec.StudentID, rec.Date)
	if _, ok := repo.db.gate[key]; ok {
		return attendance.GateRecord{}, attendance.ErrRecordExists
	}
	rec.ID = uuid.New().String()
	repo.db.gate[key] = &rec
	return rec, nil
}

func (repo *attendanceRepository) UpdateGateRecordState(ctx context.Context, id string, state attendance.StateCode, recordedBy string, updatedAt time.Time, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, rec := range repo.db.gate {
		if rec.ID == id {
			rec.State = state
			rec.RecordedBy = recordedBy
			rec.UpdatedAt = updatedAt
			return nil
		}
	}
	return attendance.ErrNotFound
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, studentID, date string, session attendance.Session, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.records[recordKey(studentID, date, session)]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.records {
		if rec.ID == id {
			return *rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := recordKey(rec.StudentID, rec.Date, rec.Session)
	if _, ok := repo.db.records[key]; ok {
		return attendance.Record{}, attendance.ErrRecordExists
	}
	rec.ID = uuid.New().String()
	repo.db.records[key] = &rec
	return rec, nil
}

func (repo *attendanceRepository) UpdateRecordState(ctx context.Context, id string, state attendance.StateCode, source attendance.Source, recordedBy string, updatedAt time.Time, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, rec := range repo.db.records {
		if rec.ID == id {
			rec.State = state
			rec.Source = source
			rec.RecordedBy = recordedBy
			rec.UpdatedAt = updatedAt
			return nil
		}
	}
	return attendance.ErrNotFound
}

func (repo *attendanceRepository) CreateStateHistory(ctx context.Context, hist attendance.StateHistory, exec ...core.DBExecutor) (attendance.StateHistory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	hist.ID = uuid.New().String()
	repo.db.history = append(repo.db.history, hist)
	return hist, nil
}

func (repo *attendanceRepository) QueryStateHistory(ctx context.Context, recordID string, exec ...core.DBExecutor) ([]attendance.StateHistory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var hists []attendance.StateHistory
	for _, h := range repo.db.history {
		if h.RecordID == recordID {
			hists = append(hists, h)
		}
	}
	sort.SliceStable(hists, func(i, j int) bool { return hists[i].ChangedAt.Before(hists[j].ChangedAt) })
	return hists, nil
}

func (repo *attendanceRepository) FilterRecords(ctx context.Context, filter attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.db.records {
		if filter.Date != "" && rec.Date != filter.Date {
			continue
		}
		if filter.GradeSectionID != "" && rec.GradeSectionID != filter.GradeSectionID {
			continue
		}
		if filter.Session != "" && rec.Session != filter.Session {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		if filter.State != "" && rec.State != filter.State {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		if records[i].Session != records[j].Session {
			return records[i].Session < records[j].Session
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}
