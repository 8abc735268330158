package withdrawal

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

var (
	// errors
	ErrNotFound = errors.New("withdrawal not found")
	// ErrAlreadyDecided means the request already reached a terminal status.
	// Decisions are write-once.
	ErrAlreadyDecided = errors.New("withdrawal already decided")
	// ErrSelfDecision means the requester tried to decide their own request.
	ErrSelfDecision = errors.New("withdrawal cannot be decided by its requester")
	// ErrPendingExists means the student already has an undecided request
	// for the date.
	ErrPendingExists = errors.New("a pending withdrawal already exists for this student and date")
)

const reconcileAttempts = 3

// notification events
const (
	EventRequested = "withdrawal.requested"
	EventDecided   = "withdrawal.decided"
)

type (
	Repository interface {
		GetWithdrawalByID(ctx context.Context, id string, exec ...core.DBExecutor) (Withdrawal, error)
		GetPendingWithdrawal(ctx context.Context, studentID, date string, exec ...core.DBExecutor) (Withdrawal, error)
		CreateWithdrawal(ctx context.Context, wd Withdrawal, exec ...core.DBExecutor) (Withdrawal, error)
		// DecideWithdrawal flips the status iff it is still PENDING and
		// returns ErrAlreadyDecided otherwise, in one atomic statement.
		DecideWithdrawal(ctx context.Context, id string, status Status, decidedBy, observations string, decidedAt time.Time, exec ...core.DBExecutor) (Withdrawal, error)
		FilterWithdrawals(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Withdrawal, error)
	}

	// Reconciler retroactively flips the attendance ledgers once a
	// withdrawal reaches a terminal status.
	Reconciler interface {
		ReconcileWithdrawal(ctx context.Context, institutionID, studentID, date string, requestedAt time.Time, authorized bool, changedBy string) error
	}

	Service struct {
		repo       Repository
		students   *student.Service
		reconciler Reconciler
		clock      *core.Clock
		logger     core.Logger
		notifSvc   core.NotificationService

		spawn func(func()) // mockable; reconciliation and notifications run off the request path
	}
)

func NewService(
	repo Repository,
	students *student.Service,
	reconciler Reconciler,
	clock *core.Clock,
	logger core.Logger,
	notifSvc core.NotificationService,
) *Service {
	return &Service{
		repo:       repo,
		students:   students,
		reconciler: reconciler,
		clock:      clock,
		logger:     logger,
		notifSvc:   notifSvc,
		spawn:      func(fn func()) { go fn() },
	}
}

// Create opens a PENDING withdrawal request. At most one undecided request
// may exist per (student, date).
func (svc *Service) Create(ctx context.Context, institutionID string, req NewWithdrawalRequest, requestedBy string) (Withdrawal, error) {
	stu, err := svc.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return Withdrawal{}, err
	}

	if _, err = svc.repo.GetPendingWithdrawal(ctx, stu.ID, req.Date); err == nil {
		return Withdrawal{}, ErrPendingExists
	} else if !errors.Is(err, ErrNotFound) {
		return Withdrawal{}, err
	}

	now := time.Now().UTC()
	wd, err := svc.repo.CreateWithdrawal(ctx, Withdrawal{
		InstitutionID: institutionID,
		StudentID:     stu.ID,
		Date:          req.Date,
		Reason:        req.Reason,
		RequestedBy:   requestedBy,
		RequestedAt:   now,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Withdrawal{}, err
	}

	svc.notifyGuardians(wd, EventRequested,
		fmt.Sprintf("Withdrawal requested for %s", wd.Date),
		fmt.Sprintf("An early-leave request for %s has been opened: %s.", wd.Date, wd.Reason))
	return wd, nil
}

// Decide applies a terminal decision on a pending request and kicks off the
// ledger reconciliation. The requester may not decide their own request.
func (svc *Service) Decide(ctx context.Context, id string, req DecisionRequest, decidedBy string) (Withdrawal, error) {
	wd, err := svc.repo.GetWithdrawalByID(ctx, id)
	if err != nil {
		return Withdrawal{}, err
	}
	if wd.Status.Terminal() {
		return Withdrawal{}, ErrAlreadyDecided
	}
	if wd.RequestedBy == decidedBy {
		return Withdrawal{}, ErrSelfDecision
	}

	status := StatusRejected
	if *req.Authorized {
		status = StatusAuthorized
	}

	wd, err = svc.repo.DecideWithdrawal(ctx, wd.ID, status, decidedBy, req.Observations, time.Now().UTC())
	if err != nil {
		return Withdrawal{}, err
	}

	svc.reconcile(wd, decidedBy)
	svc.notifyGuardians(wd, EventDecided,
		fmt.Sprintf("Withdrawal %s", wd.Status),
		fmt.Sprintf("The withdrawal request for %s has been %s.", wd.Date, wd.Status))
	return wd, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Withdrawal, error) {
	return svc.repo.GetWithdrawalByID(ctx, id)
}

// Filter lists withdrawal requests.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Withdrawal, error) {
	return svc.repo.FilterWithdrawals(ctx, filter, ordering)
}

// reconcile flips the attendance ledgers off the request path, retrying a
// few times. The reconciler is idempotent so a retry after a partial write
// is safe; a final failure is only logged, a rerun of Decide is not possible
// (write-once) so operators replay via the attendance API.
func (svc *Service) reconcile(wd Withdrawal, changedBy string) {
	svc.spawn(func() {
		ctx := context.Background()
		var err error
		for attempt := 1; attempt <= reconcileAttempts; attempt++ {
			err = svc.reconciler.ReconcileWithdrawal(
				ctx, wd.InstitutionID, wd.StudentID, wd.Date, wd.RequestedAt, wd.Status == StatusAuthorized, changedBy)
			if err == nil {
				return
			}
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		svc.logger.Error(fmt.Sprintf("reconciling ledgers for withdrawal %s: %v", wd.ID, err), err)
	})
}

func (svc *Service) notifyGuardians(wd Withdrawal, event, subject, body string) {
	svc.spawn(func() {
		contacts, err := svc.students.GuardianContacts(context.Background(), wd.StudentID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("querying guardian contacts for %s: %v", wd.StudentID, err), err)
			return
		}
		if len(contacts) == 0 {
			return
		}
		svc.notifSvc.SendNotifications(&core.Notification{
			Event:     event,
			StudentID: wd.StudentID,
			Subject:   subject,
			Body:      body,
			To:        contacts,
		})
	})
}
