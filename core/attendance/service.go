package attendance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

var (
	// errors
	ErrNotFound = errors.New("attendance record not found")
	// ErrRecordExists is reported by repositories on a uniqueness-constraint
	// conflict; the ledger writer converts it to a duplicate outcome.
	ErrRecordExists = errors.New("attendance record already exists")
)

// notification events
const (
	EventRecorded = "attendance.recorded"
	EventSwept    = "attendance.swept"
)

type (
	Repository interface {
		GetGateRecord(ctx context.Context, studentID, date string, exec ...core.DBExecutor) (GateRecord, error)
		CreateGateRecord(ctx context.Context, rec GateRecord, exec ...core.DBExecutor) (GateRecord, error)
		UpdateGateRecordState(ctx context.Context, id string, state StateCode, recordedBy string, updatedAt time.Time, exec ...core.DBExecutor) error
		GetRecord(ctx context.Context, studentID, date string, session Session, exec ...core.DBExecutor) (Record, error)
		GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		UpdateRecordState(ctx context.Context, id string, state StateCode, source Source, recordedBy string, updatedAt time.Time, exec ...core.DBExecutor) error
		CreateStateHistory(ctx context.Context, hist StateHistory, exec ...core.DBExecutor) (StateHistory, error)
		// QueryStateHistory returns a record's transitions, oldest first.
		QueryStateHistory(ctx context.Context, recordID string, exec ...core.DBExecutor) ([]StateHistory, error)
		// FilterRecords applies AND operation on available QueryFilter fields.
		FilterRecords(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
	}

	// Service is the attendance consistency engine. It is the only component
	// allowed to mutate GateRecord, Record and StateHistory; every write runs
	// through the keyed Gate and inside one transaction per logical write.
	Service struct {
		db        core.DB
		repo      Repository
		students  *student.Service
		schedules schedule.Repository
		keyGate   *Gate
		clock     *core.Clock
		conf      *core.Config
		logger    core.Logger
		notifSvc  core.NotificationService

		spawn func(func()) // mockable; notifications are fire-and-forget
	}
)

func NewService(
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
	return &Service{
		db:        db,
		repo:      repo,
		students:  students,
		schedules: schedules,
		keyGate:   keyGate,
		clock:     clock,
		conf:      conf,
		logger:    logger,
		notifSvc:  notifSvc,
		spawn:     func(fn func()) { go fn() },
	}
}

// RecordGateScan handles a scan at the institution's entrance: it creates the
// daily gate ledger entry and pre-charges a PENDING classroom entry for the
// classified session, to be confirmed by the teacher or swept later.
func (svc *Service) RecordGateScan(ctx context.Context, institutionID string, req GateScanRequest, recordedBy string) (RecordResult, error) {
	stu, err := svc.students.ResolveByCode(ctx, institutionID, req.Code)
	if err != nil {
		return RecordResult{}, err
	}

	observed := svc.clock.Now()
	session := ClassifySession(observed, Session(req.Session))
	state, err := svc.gateCutoffState(req.Date, observed)
	if err != nil {
		return RecordResult{}, err
	}

	res, _, err := svc.keyGate.Do(GateKey(stu.ID, req.Date), func() (RecordResult, error) {
		return svc.writeGate(ctx, gateWrite{
			institutionID: institutionID,
			studentID:     stu.ID,
			date:          req.Date,
			ingress:       null.TimeFrom(observed.UTC()),
			state:         state,
			recordedBy:    recordedBy,
		})
	})
	if err != nil {
		return RecordResult{}, err
	}
	res.Session = session

	if res.Outcome == OutcomeCreated {
		// pre-charge the classroom ledger; a failure here is recoverable
		// (the sweeper treats a missing entry like a PENDING one)
		if _, _, perr := svc.keyGate.Do(ClassKey(stu.ID, req.Date, session), func() (RecordResult, error) {
			return svc.writeClassroom(ctx, classroomWrite{
				institutionID:  institutionID,
				studentID:      stu.ID,
				gradeSectionID: stu.GradeSectionID,
				date:           req.Date,
				session:        session,
				state:          StatePending,
				source:         SourceGate,
				recordedBy:     recordedBy,
				createOnly:     true,
			})
		}); perr != nil {
			svc.logger.Warn(fmt.Sprintf("pre-charging classroom entry for student %s: %v", stu.ID, perr), perr)
		}

		svc.notifyGuardians(stu.ID, EventRecorded,
			"Gate check-in recorded",
			fmt.Sprintf("%s checked in at the gate on %s (%s).", stu.FullName(), req.Date, state))
	}
	return res, nil
}

// RecordEntry handles a classroom observation: a QR scan or a manual teacher
// entry. The same (student, date, session) key never stores two records; a
// repeat observation reports the existing state as a duplicate outcome.
func (svc *Service) RecordEntry(ctx context.Context, institutionID string, req EntryRequest, recordedBy string) (RecordResult, error) {
	stu, err := svc.students.ResolveByCode(ctx, institutionID, req.Code)
	if err != nil {
		return RecordResult{}, err
	}
	gradeSectionID := req.GradeSectionID
	if gradeSectionID == "" {
		gradeSectionID = stu.GradeSectionID
	}

	observed := svc.clock.Now()
	session := ClassifySession(observed, Session(req.Session))

	var state StateCode
	source := SourceQRScan
	if req.DesiredState != "" {
		state = StateCode(req.DesiredState)
		source = SourceManual
	} else {
		if state, err = svc.resolveClassState(ctx, institutionID, gradeSectionID, req.Date, session, observed); err != nil {
			return RecordResult{}, err
		}
	}

	write := func() (RecordResult, error) {
		return svc.writeClassroom(ctx, classroomWrite{
			institutionID:  institutionID,
			studentID:      stu.ID,
			gradeSectionID: gradeSectionID,
			date:           req.Date,
			session:        session,
			state:          state,
			source:         source,
			recordedBy:     recordedBy,
		})
	}
	var res RecordResult
	if source == SourceManual {
		// a teacher's explicit decision is never answered from a cached scan
		res, err = svc.keyGate.DoFresh(ClassKey(stu.ID, req.Date, session), write)
	} else {
		res, _, err = svc.keyGate.Do(ClassKey(stu.ID, req.Date, session), write)
	}
	if err != nil {
		return RecordResult{}, err
	}

	if res.Outcome == OutcomeCreated {
		svc.notifyGuardians(stu.ID, EventRecorded,
			"Attendance recorded",
			fmt.Sprintf("%s was recorded %s for the %s session of %s.", stu.FullName(), res.State, session, req.Date))
	}
	return res, nil
}

// VerifyGateEntry applies a teacher's decision on a gate-precharged entry.
// Approving resolves the state from the gate ingress time against the class
// schedule; rejecting writes nothing (the sweeper handles the rest).
func (svc *Service) VerifyGateEntry(ctx context.Context, institutionID string, req VerifyRequest, recordedBy string) (RecordResult, error) {
	stu, err := svc.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return RecordResult{}, err
	}

	gateRec, err := svc.repo.GetGateRecord(ctx, stu.ID, req.Date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RecordResult{}, errors.Wrapf(ErrNotFound, "no gate entry for student %s on %s", stu.ID, req.Date)
		}
		return RecordResult{}, err
	}
	if !gateRec.IngressTime.Valid {
		return RecordResult{}, core.NewValidationError(nil,
			core.FieldError{Field: "student_id", Error: "gate entry has no ingress time"})
	}

	ingress := svc.clock.Normalize(gateRec.IngressTime.Time)
	session := ClassifySession(ingress, "")

	if req.Decision == "reject" {
		return RecordResult{
			StudentID: stu.ID,
			Date:      req.Date,
			Session:   session,
			Outcome:   OutcomeSkipped,
		}, nil
	}

	state, err := svc.resolveClassState(ctx, institutionID, stu.GradeSectionID, req.Date, session, ingress)
	if err != nil {
		return RecordResult{}, err
	}

	return svc.keyGate.DoFresh(ClassKey(stu.ID, req.Date, session), func() (RecordResult, error) {
		return svc.writeClassroom(ctx, classroomWrite{
			institutionID:  institutionID,
			studentID:      stu.ID,
			gradeSectionID: stu.GradeSectionID,
			date:           req.Date,
			session:        session,
			state:          state,
			source:         SourceGate,
			recordedBy:     recordedBy,
		})
	})
}

// SweepAbsences marks ABSENT every enrolled student with no terminal
// classroom entry for the date/session. Running it twice is a no-op on the
// second run. Unless forced, it refuses to run before the class has ended.
func (svc *Service) SweepAbsences(ctx context.Context, institutionID string, req SweepRequest, recordedBy string) (SweepResult, error) {
	session := Session(req.Session)
	if session == "" {
		session = ClassifySession(svc.clock.Now(), "")
	}
	result := SweepResult{Date: req.Date, GradeSectionID: req.GradeSectionID, Session: session}

	sched, err := svc.schedules.GetClassSchedule(ctx, institutionID, req.GradeSectionID, string(session))
	switch {
	case err == nil:
		if !req.Force {
			endCT, err := sched.End()
			if err != nil {
				return SweepResult{}, err
			}
			endAt, err := svc.clock.On(req.Date, endCT)
			if err != nil {
				return SweepResult{}, err
			}
			if now := svc.clock.Now(); now.Before(endAt) {
				result.NotYetDue = true
				result.MinutesRemaining = int(math.Ceil(endAt.Sub(now).Minutes()))
				return result, nil
			}
		}
	case errors.Is(err, schedule.ErrNotFound):
		// without a timetable the end-of-class precondition cannot be checked
		if !req.Force {
			return SweepResult{}, core.NewValidationError(err,
				core.FieldError{Field: "grade_section_id", Error: "no class schedule found; pass force to sweep anyway"})
		}
	default:
		return SweepResult{}, err
	}

	students, err := svc.students.QueryEnrolled(ctx, institutionID, req.GradeSectionID)
	if err != nil {
		return SweepResult{}, err
	}
	result.Considered = len(students)

	for _, stu := range students {
		stu := stu
		// a cached scan result must not count as a fresh ABSENT write
		res, err := svc.keyGate.DoFresh(ClassKey(stu.ID, req.Date, session), func() (RecordResult, error) {
			return svc.writeClassroom(ctx, classroomWrite{
				institutionID:  institutionID,
				studentID:      stu.ID,
				gradeSectionID: req.GradeSectionID,
				date:           req.Date,
				session:        session,
				state:          StateAbsent,
				source:         SourceSweep,
				recordedBy:     recordedBy,
			})
		})
		if err != nil {
			return SweepResult{}, errors.Wrapf(err, "sweeping student %s", stu.ID)
		}
		switch res.Outcome {
		case OutcomeCreated:
			result.MarkedAbsent++
			svc.notifyGuardians(stu.ID, EventSwept,
				"Absence recorded",
				fmt.Sprintf("%s was marked absent for the %s session of %s.", stu.FullName(), session, req.Date))
		default:
			result.AlreadyRecorded++
		}
	}
	return result, nil
}

// ReconcileWithdrawal retroactively flips the ledgers after a withdrawal
// reaches a terminal status: AUTHORIZED sets the gate entry to PRESENT,
// REJECTED to ABSENT; the classroom entry mirrors the state unless it already
// holds a terminal one. Idempotent and safe to retry.
func (svc *Service) ReconcileWithdrawal(ctx context.Context, institutionID, studentID, date string, requestedAt time.Time, authorized bool, changedBy string) error {
	state := StateAbsent
	if authorized {
		state = StatePresent
	}

	// forced writes bypass the result cache so a recent scan cannot mask them
	if _, err := svc.keyGate.DoFresh(GateKey(studentID, date), func() (RecordResult, error) {
		return svc.writeGate(ctx, gateWrite{
			institutionID: institutionID,
			studentID:     studentID,
			date:          date,
			state:         state,
			recordedBy:    changedBy,
			force:         true,
		})
	}); err != nil {
		return errors.Wrap(err, "reconciling gate ledger")
	}

	session := ClassifySession(svc.clock.Normalize(requestedAt), "")
	if _, err := svc.keyGate.DoFresh(ClassKey(studentID, date, session), func() (RecordResult, error) {
		return svc.writeClassroom(ctx, classroomWrite{
			institutionID: institutionID,
			studentID:     studentID,
			date:          date,
			session:       session,
			state:         state,
			source:        SourceReconciliation,
			recordedBy:    changedBy,
		})
	}); err != nil {
		return errors.Wrap(err, "reconciling classroom ledger")
	}
	return nil
}

// GetGateRecord returns a student's gate ledger entry for a date.
func (svc *Service) GetGateRecord(ctx context.Context, studentID, date string) (GateRecord, error) {
	return svc.repo.GetGateRecord(ctx, studentID, date)
}

// History returns a classroom record's state transitions, oldest first.
func (svc *Service) History(ctx context.Context, recordID string) ([]StateHistory, error) {
	if _, err := svc.repo.GetRecordByID(ctx, recordID); err != nil {
		return nil, err
	}
	return svc.repo.QueryStateHistory(ctx, recordID)
}

// Today returns the current institution-local date.
func (svc *Service) Today() string {
	return svc.clock.Today()
}

// Filter lists classroom records.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Record, error) {
	return svc.repo.FilterRecords(ctx, filter, ordering)
}

// internals

// gateCutoffState resolves a gate scan's state against the institution's
// configured default cutoff + tolerance.
func (svc *Service) gateCutoffState(date string, observed time.Time) (StateCode, error) {
	cutoff, err := core.ParseClockTime(svc.conf.Attendance.GateCutoff)
	if err != nil {
		return "", err
	}
	start, err := svc.clock.On(date, cutoff)
	if err != nil {
		return "", err
	}
	return ResolveState(svc.clock.Normalize(observed), start, svc.conf.Attendance.GateToleranceMin), nil
}

// resolveClassState resolves a classroom observation's state against the
// grade-section's schedule, falling back to the institution gate cutoff when
// no schedule exists for the session.
func (svc *Service) resolveClassState(ctx context.Context, institutionID, gradeSectionID, date string, session Session, observed time.Time) (StateCode, error) {
	sched, err := svc.schedules.GetClassSchedule(ctx, institutionID, gradeSectionID, string(session))
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return svc.gateCutoffState(date, observed)
		}
		return "", err
	}
	startCT, err := sched.Start()
	if err != nil {
		return "", err
	}
	start, err := svc.clock.On(date, startCT)
	if err != nil {
		return "", err
	}
	return ResolveState(svc.clock.Normalize(observed), start, sched.ToleranceMin), nil
}

type classroomWrite struct {
	institutionID  string
	studentID      string
	gradeSectionID string
	date           string
	session        Session
	state          StateCode
	source         Source
	recordedBy     string
	// createOnly never touches an existing record (gate pre-charge).
	createOnly bool
}

// writeClassroom is the classroom half of the Ledger Writer: lookup +
// insert/update + history append as one atomic unit of work. The caller must
// already hold the logical key in the Gate.
func (svc *Service) writeClassroom(ctx context.Context, w classroomWrite) (RecordResult, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "beginning transaction")
	}

	existing, err := svc.repo.GetRecord(ctx, w.studentID, w.date, w.session, tx)
	switch {
	case err == nil:
		if existing.State.Terminal() || existing.State == w.state || w.createOnly {
			_ = tx.Rollback()
			return duplicateOf(existing), nil
		}

		now := time.Now().UTC()
		if err = svc.repo.UpdateRecordState(ctx, existing.ID, w.state, w.source, w.recordedBy, now, tx); err != nil {
			_ = tx.Rollback()
			return RecordResult{}, errors.Wrap(err, "updating classroom record")
		}
		if _, err = svc.repo.CreateStateHistory(ctx, StateHistory{
			RecordID:  existing.ID,
			State:     w.state,
			ChangedBy: w.recordedBy,
			ChangedAt: now,
		}, tx); err != nil {
			_ = tx.Rollback()
			return RecordResult{}, errors.Wrap(err, "appending state history")
		}
		if err = tx.Commit(); err != nil {
			return RecordResult{}, errors.Wrap(err, "committing classroom update")
		}
		return RecordResult{
			RecordID:   existing.ID,
			StudentID:  w.studentID,
			Date:       w.date,
			Session:    w.session,
			State:      w.state,
			Outcome:    OutcomeCreated,
			RecordedAt: now,
		}, nil

	case errors.Is(err, ErrNotFound):
		now := time.Now().UTC()
		rec, err := svc.repo.CreateRecord(ctx, Record{
			InstitutionID:  w.institutionID,
			StudentID:      w.studentID,
			GradeSectionID: w.gradeSectionID,
			Date:           w.date,
			Session:        w.session,
			State:          w.state,
			Source:         w.source,
			RecordedBy:     w.recordedBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, tx)
		if err != nil {
			_ = tx.Rollback()
			if errors.Is(err, ErrRecordExists) {
				// lost a cross-instance race; the constraint did its job
				if existing, gerr := svc.repo.GetRecord(ctx, w.studentID, w.date, w.session); gerr == nil {
					return duplicateOf(existing), nil
				}
			}
			return RecordResult{}, errors.Wrap(err, "creating classroom record")
		}
		if _, err = svc.repo.CreateStateHistory(ctx, StateHistory{
			RecordID:  rec.ID,
			State:     w.state,
			ChangedBy: w.recordedBy,
			ChangedAt: now,
		}, tx); err != nil {
			_ = tx.Rollback()
			return RecordResult{}, errors.Wrap(err, "appending state history")
		}
		if err = tx.Commit(); err != nil {
			return RecordResult{}, errors.Wrap(err, "committing classroom record")
		}
		return RecordResult{
			RecordID:   rec.ID,
			StudentID:  w.studentID,
			Date:       w.date,
			Session:    w.session,
			State:      w.state,
			Outcome:    OutcomeCreated,
			RecordedAt: now,
		}, nil

	default:
		_ = tx.Rollback()
		return RecordResult{}, errors.Wrap(err, "checking classroom record")
	}
}

type gateWrite struct {
	institutionID string
	studentID     string
	date          string
	ingress       null.Time
	state         StateCode
	recordedBy    string
	// force lets the withdrawal reconciler overwrite a terminal gate state.
	force bool
}

// writeGate is the gate half of the Ledger Writer.
func (svc *Service) writeGate(ctx context.Context, w gateWrite) (RecordResult, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "beginning transaction")
	}

	existing, err := svc.repo.GetGateRecord(ctx, w.studentID, w.date, tx)
	switch {
	case err == nil:
		if !w.force || existing.State == w.state {
			_ = tx.Rollback()
			return RecordResult{
				RecordID:   existing.ID,
				StudentID:  w.studentID,
				Date:       w.date,
				State:      existing.State,
				Outcome:    OutcomeDuplicate,
				RecordedAt: existing.UpdatedAt,
			}, nil
		}

		now := time.Now().UTC()
		if err = svc.repo.UpdateGateRecordState(ctx, existing.ID, w.state, w.recordedBy, now, tx); err != nil {
			_ = tx.Rollback()
			return RecordResult{}, errors.Wrap(err, "updating gate record")
		}
		if err = tx.Commit(); err != nil {
			return RecordResult{}, errors.Wrap(err, "committing gate update")
		}
		return RecordResult{
			RecordID:   existing.ID,
			StudentID:  w.studentID,
			Date:       w.date,
			State:      w.state,
			Outcome:    OutcomeCreated,
			RecordedAt: now,
		}, nil

	case errors.Is(err, ErrNotFound):
		now := time.Now().UTC()
		rec, err := svc.repo.CreateGateRecord(ctx, GateRecord{
			InstitutionID: w.institutionID,
			StudentID:     w.studentID,
			Date:          w.date,
			IngressTime:   w.ingress,
			State:         w.state,
			RecordedBy:    w.recordedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, tx)
		if err != nil {
			_ = tx.Rollback()
			if errors.Is(err, ErrRecordExists) {
				if existing, gerr := svc.repo.GetGateRecord(ctx, w.studentID, w.date); gerr == nil {
					return RecordResult{
						RecordID:   existing.ID,
						StudentID:  w.studentID,
						Date:       w.date,
						State:      existing.State,
						Outcome:    OutcomeDuplicate,
						RecordedAt: existing.UpdatedAt,
					}, nil
				}
			}
			return RecordResult{}, errors.Wrap(err, "creating gate record")
		}
		if err = tx.Commit(); err != nil {
			return RecordResult{}, errors.Wrap(err, "committing gate record")
		}
		return RecordResult{
			RecordID:   rec.ID,
			StudentID:  w.studentID,
			Date:       w.date,
			State:      w.state,
			Outcome:    OutcomeCreated,
			RecordedAt: now,
		}, nil

	default:
		_ = tx.Rollback()
		return RecordResult{}, errors.Wrap(err, "checking gate record")
	}
}

func duplicateOf(rec Record) RecordResult {
	return RecordResult{
		RecordID:   rec.ID,
		StudentID:  rec.StudentID,
		Date:       rec.Date,
		Session:    rec.Session,
		State:      rec.State,
		Outcome:    OutcomeDuplicate,
		RecordedAt: rec.UpdatedAt,
	}
}

func (svc *Service) notifyGuardians(studentID, event, subject, body string) {
	svc.spawn(func() {
		contacts, err := svc.students.GuardianContacts(context.Background(), studentID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("querying guardian contacts for %s: %v", studentID, err), err)
			return
		}
		if len(contacts) == 0 {
			return
		}
		svc.notifSvc.SendNotifications(&core.Notification{
			Event:     event,
			StudentID: studentID,
			Subject:   subject,
			Body:      body,
			To:        contacts,
		})
	})
}
