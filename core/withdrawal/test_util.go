package withdrawal

import (
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

// NewServiceMock returns a Service whose asynchronous work (reconciliation,
// guardian notifications) runs synchronously.
func NewServiceMock(
	repo Repository,
	students *student.Service,
	reconciler Reconciler,
	clock *core.Clock,
	logger core.Logger,
	notifSvc core.NotificationService,
) *Service {
	svc := NewService(repo, students, reconciler, clock, logger, notifSvc)
	svc.spawn = func(fn func()) { fn() }
	return svc
}
