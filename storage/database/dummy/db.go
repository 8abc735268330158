// Package dummydb provides in-memory repositories for tests and local runs.
package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/core/withdrawal"
)

type (
	DB struct {
		core.DBExecutor // never used; in-memory tables need no SQL

		student    *studentTable
		schedule   *scheduleTable
		attendance *attendanceTable
		withdrawal *withdrawalTable
	}

	studentTable struct {
		sync.RWMutex
		students  map[string]*student.Student
		guardians map[string][]student.Guardian
	}

	scheduleTable struct {
		sync.RWMutex
		table map[string]*schedule.ClassSchedule // institution|gradeSection|session
	}

	attendanceTable struct {
		sync.RWMutex
		gate    map[string]*attendance.GateRecord // student|date
		records map[string]*attendance.Record     // student|date|session
		history []attendance.StateHistory
	}

	withdrawalTable struct {
		sync.RWMutex
		table map[string]*withdrawal.Withdrawal
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		student: &studentTable{
			students:  make(map[string]*student.Student),
			guardians: make(map[string][]student.Guardian),
		},
		schedule:   &scheduleTable{table: make(map[string]*schedule.ClassSchedule)},
		attendance: &attendanceTable{gate: make(map[string]*attendance.GateRecord), records: make(map[string]*attendance.Record)},
		withdrawal: &withdrawalTable{table: make(map[string]*withdrawal.Withdrawal)},
	}
	return db, nil
}

// BeginTx returns a no-op transactor; each dummy repository call is atomic
// under its table lock already.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{}, nil
}

type noopTx struct {
	core.DBExecutor
}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
