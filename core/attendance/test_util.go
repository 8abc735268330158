package attendance

import (
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

// NewServiceMock returns a Service whose asynchronous work (guardian
// notifications) runs synchronously.
func NewServiceMock(
	db core.DB,
	repo Repository,
	students *student.Service,
	schedules schedule.Repository,
	keyGate *Gate,
	clock *core.Clock,
	conf *core.Config,
	logger core.Logger,
	notifSvc core.NotificationService,
) *Service {
	svc := NewService(db, repo, students, schedules, keyGate, clock, conf, logger, notifSvc)
	svc.spawn = func(fn func()) { fn() }
	return svc
}
