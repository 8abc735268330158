package withdrawal_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/core/withdrawal"
	notifsvc "github.com/trezcool/mahudhurio/services/notification"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
	testutil "github.com/trezcool/mahudhurio/tests"
)

const testDate = "2021-03-08"

func boolp(b bool) *bool { return &b }

type reconcileCall struct {
	studentID  string
	date       string
	authorized bool
	changedBy  string
}

type fakeReconciler struct {
	calls []reconcileCall
	err   error
}

func (f *fakeReconciler) ReconcileWithdrawal(_ context.Context, _, studentID, date string, _ time.Time, authorized bool, changedBy string) error {
	f.calls = append(f.calls, reconcileCall{studentID, date, authorized, changedBy})
	return f.err
}

func setup(t *testing.T) (*withdrawal.Service, testutil.StudentSeeder, *fakeReconciler) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	conf := testutil.NewTestConfig()
	logger := testutil.NewTestLogger()
	stuRepo := dummydb.NewStudentRepository(db)
	rec := &fakeReconciler{}
	svc := withdrawal.NewServiceMock(
		dummydb.NewWithdrawalRepository(db),
		student.NewService(stuRepo, logger, []byte(conf.SecretKey)),
		rec,
		core.NewClock(conf.Attendance.Location()),
		logger,
		notifsvc.NewConsoleServiceMock(conf),
	)
	return svc, stuRepo, rec
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, stuRepo, _ := setup(t)
	stu := testutil.CreateStudent(t, stuRepo, "Amani", "Kabila", "sec-6a", "NID-001", "STU-001", true)

	req := withdrawal.NewWithdrawalRequest{StudentID: stu.ID, Date: testDate, Reason: "medical appointment"}
	wd, err := svc.Create(ctx, testutil.TestInstitutionID, req, "teacher-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if wd.Status != withdrawal.StatusPending {
		t.Errorf("Status = %v, want %v", wd.Status, withdrawal.StatusPending)
	}
	if wd.RequestedBy != "teacher-1" {
		t.Errorf("RequestedBy = %q, want %q", wd.RequestedBy, "teacher-1")
	}

	t.Run("one pending request per student and date", func(t *testing.T) {
		if _, err = svc.Create(ctx, testutil.TestInstitutionID, req, "teacher-2"); !errors.Is(err, withdrawal.ErrPendingExists) {
			t.Errorf("Create() error = %v, want %v", err, withdrawal.ErrPendingExists)
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		req := withdrawal.NewWithdrawalRequest{StudentID: "no-such", Date: testDate, Reason: "x"}
		if _, err = svc.Create(ctx, testutil.TestInstitutionID, req, "teacher-1"); !errors.Is(err, student.ErrNotFound) {
			t.Errorf("Create() error = %v, want %v", err, student.ErrNotFound)
		}
	})
}

func TestService_Decide(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, svc *withdrawal.Service, stuRepo testutil.StudentSeeder, code string) withdrawal.Withdrawal {
		t.Helper()
		stu := testutil.CreateStudent(t, stuRepo, "Amani", "Kabila", "sec-6a", "NID-"+code, code, true)
		wd, err := svc.Create(ctx, testutil.TestInstitutionID,
			withdrawal.NewWithdrawalRequest{StudentID: stu.ID, Date: testDate, Reason: "family event"}, "teacher-1")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return wd
	}

	t.Run("authorize reconciles the ledgers", func(t *testing.T) {
		svc, stuRepo, rec := setup(t)
		wd := create(t, svc, stuRepo, "STU-001")

		decided, err := svc.Decide(ctx, wd.ID,
			withdrawal.DecisionRequest{Authorized: boolp(true), Observations: "guardian called ahead"}, "staff-1")
		if err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		if decided.Status != withdrawal.StatusAuthorized {
			t.Errorf("Status = %v, want %v", decided.Status, withdrawal.StatusAuthorized)
		}
		if !decided.DecidedBy.Valid || decided.DecidedBy.String != "staff-1" {
			t.Errorf("DecidedBy = %v, want staff-1", decided.DecidedBy)
		}
		if !decided.Observations.Valid || decided.Observations.String != "guardian called ahead" {
			t.Errorf("Observations = %v, want recorded", decided.Observations)
		}
		if len(rec.calls) != 1 {
			t.Fatalf("reconciler called %d times, want 1", len(rec.calls))
		}
		call := rec.calls[0]
		if call.studentID != wd.StudentID || call.date != testDate || !call.authorized || call.changedBy != "staff-1" {
			t.Errorf("reconciler call = %+v", call)
		}
	})

	t.Run("reject reconciles as unauthorized", func(t *testing.T) {
		svc, stuRepo, rec := setup(t)
		wd := create(t, svc, stuRepo, "STU-002")

		decided, err := svc.Decide(ctx, wd.ID, withdrawal.DecisionRequest{Authorized: boolp(false)}, "staff-1")
		if err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		if decided.Status != withdrawal.StatusRejected {
			t.Errorf("Status = %v, want %v", decided.Status, withdrawal.StatusRejected)
		}
		if len(rec.calls) != 1 || rec.calls[0].authorized {
			t.Errorf("reconciler calls = %+v, want one unauthorized call", rec.calls)
		}
	})

	t.Run("requester cannot decide their own request", func(t *testing.T) {
		svc, stuRepo, rec := setup(t)
		wd := create(t, svc, stuRepo, "STU-003")

		_, err := svc.Decide(ctx, wd.ID, withdrawal.DecisionRequest{Authorized: boolp(true)}, "teacher-1")
		if !errors.Is(err, withdrawal.ErrSelfDecision) {
			t.Errorf("Decide() error = %v, want %v", err, withdrawal.ErrSelfDecision)
		}
		if len(rec.calls) != 0 {
			t.Errorf("reconciler called %d times, want 0", len(rec.calls))
		}
	})

	t.Run("decisions are write-once", func(t *testing.T) {
		svc, stuRepo, rec := setup(t)
		wd := create(t, svc, stuRepo, "STU-004")

		if _, err := svc.Decide(ctx, wd.ID, withdrawal.DecisionRequest{Authorized: boolp(false)}, "staff-1"); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		_, err := svc.Decide(ctx, wd.ID, withdrawal.DecisionRequest{Authorized: boolp(true)}, "staff-2")
		if !errors.Is(err, withdrawal.ErrAlreadyDecided) {
			t.Errorf("Decide() error = %v, want %v", err, withdrawal.ErrAlreadyDecided)
		}
		if len(rec.calls) != 1 {
			t.Errorf("reconciler called %d times, want 1", len(rec.calls))
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.Decide(ctx, "no-such", withdrawal.DecisionRequest{Authorized: boolp(true)}, "staff-1")
		if !errors.Is(err, withdrawal.ErrNotFound) {
			t.Errorf("Decide() error = %v, want %v", err, withdrawal.ErrNotFound)
		}
	})
}
