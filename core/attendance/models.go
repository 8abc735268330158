package attendance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

// Session is the half-day bucket scoping one classroom ledger entry.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// StateCode is an attendance state. PENDING is the only non-terminal state:
// it marks a gate-precharged classroom entry awaiting teacher verification.
type StateCode string

const (
	StatePending StateCode = "PENDING"
	StatePresent StateCode = "PRESENT"
	StateLate    StateCode = "LATE"
	StateAbsent  StateCode = "ABSENT"
)

// Terminal reports whether the state may no longer be overwritten by regular
// writes. Only the Withdrawal reconciler may flip a terminal gate state.
func (s StateCode) Terminal() bool {
	return s == StatePresent || s == StateLate || s == StateAbsent
}

// Source distinguishes how a classroom ledger entry was produced.
type Source string

const (
	SourceQRScan         Source = "qr_scan"
	SourceManual         Source = "manual"
	SourceGate           Source = "gate"
	SourceSweep          Source = "sweep"
	SourceReconciliation Source = "reconciliation"
)

// GateRecord is the once-per-day gate ledger entry.
// At most one exists per (student, date); enforced by a DB constraint.
type GateRecord struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	StudentID     string    `json:"student_id"`
	Date          string    `json:"date"`
	IngressTime   null.Time `json:"ingress_time"` // UTC; null when created by reconciliation
	State         StateCode `json:"state"`
	RecordedBy    string    `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// Record is the per-session classroom ledger entry.
// At most one exists per (student, date, session); enforced by a DB constraint.
type Record struct {
	ID             string    `json:"id"`
	InstitutionID  string    `json:"institution_id"`
	StudentID      string    `json:"student_id"`
	GradeSectionID string    `json:"grade_section_id"`
	Date           string    `json:"date"`
	Session        Session   `json:"session"`
	State          StateCode `json:"state"`
	Source         Source    `json:"source"`
	RecordedBy     string    `json:"recorded_by"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// StateHistory is the append-only trail of classroom state transitions,
// one entry per transition, oldest first. Never mutated or deleted.
type StateHistory struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	State     StateCode `json:"state"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"` // UTC
}

// Outcome qualifies a guarded write.
type Outcome string

const (
	// OutcomeCreated means this call stored or updated the record.
	OutcomeCreated Outcome = "created"
	// OutcomeDuplicate means the key already held a terminal record; the
	// existing state is returned. A successful no-op, not an error.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeSkipped means the operation deliberately wrote nothing
	// (e.g. a rejected gate verification).
	OutcomeSkipped Outcome = "skipped"
)

// RecordResult is the outcome of any guarded ledger write.
type RecordResult struct {
	RecordID   string    `json:"record_id,omitempty"`
	StudentID  string    `json:"student_id"`
	Date       string    `json:"date"`
	Session    Session   `json:"session,omitempty"`
	State      StateCode `json:"state,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	RecordedAt time.Time `json:"recorded_at"` // existing record's timestamp on duplicate
}

// SweepResult reports an absence sweep run.
type SweepResult struct {
	Date             string  `json:"date"`
	GradeSectionID   string  `json:"grade_section_id"`
	Session          Session `json:"session"`
	NotYetDue        bool    `json:"not_yet_due,omitempty"`
	MinutesRemaining int     `json:"minutes_remaining,omitempty"`
	Considered       int     `json:"considered"`
	MarkedAbsent     int     `json:"marked_absent"`
	AlreadyRecorded  int     `json:"already_recorded"`
}

// QueryFilter applies AND on available fields when listing classroom records.
type QueryFilter struct {
	Date           string
	GradeSectionID string
	Session        Session
	StudentID      string
	State          StateCode
}

// Requests

// GateScanRequest records a student's arrival at the institution's entrance.
type GateScanRequest struct {
	Code    string `json:"code" validate:"required"`
	Date    string `json:"date" validate:"required,dateonly"`
	Session string `json:"session" validate:"omitempty,oneof=AM PM"`
}

func (r *GateScanRequest) Validate(validate *validator.Validate) error {
	r.Code = core.CleanString(r.Code)
	r.Date = core.CleanString(r.Date)
	r.Session = strings.ToUpper(core.CleanString(r.Session))
	return validate.Struct(r)
}

// EntryRequest records a classroom observation: a QR scan or a manual
// teacher entry (the latter carries a desired state).
type EntryRequest struct {
	Code           string `json:"code" validate:"required"`
	Date           string `json:"date" validate:"required,dateonly"`
	Session        string `json:"session" validate:"omitempty,oneof=AM PM"`
	GradeSectionID string `json:"grade_section_id"`
	// DesiredState marks a manual entry; ABSENT is never accepted here, it
	// can only come from the sweeper or a rejected withdrawal.
	DesiredState string `json:"desired_state" validate:"omitempty,oneof=PRESENT LATE"`
}

func (r *EntryRequest) Validate(validate *validator.Validate) error {
	r.Code = core.CleanString(r.Code)
	r.Date = core.CleanString(r.Date)
	r.Session = strings.ToUpper(core.CleanString(r.Session))
	r.GradeSectionID = core.CleanString(r.GradeSectionID)
	r.DesiredState = strings.ToUpper(core.CleanString(r.DesiredState))
	return validate.Struct(r)
}

// VerifyRequest is a teacher's decision on a gate-precharged entry.
type VerifyRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,dateonly"`
	Decision  string `json:"decision" validate:"required,oneof=approve reject"`
}

func (r *VerifyRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.Date = core.CleanString(r.Date)
	r.Decision = core.CleanString(r.Decision, true /* lower */)
	return validate.Struct(r)
}

// SweepRequest triggers an absence sweep for a date and grade-section.
type SweepRequest struct {
	Date           string `json:"date" validate:"required,dateonly"`
	GradeSectionID string `json:"grade_section_id" validate:"required"`
	Session        string `json:"session" validate:"omitempty,oneof=AM PM"`
	// Force bypasses the class-has-ended precondition.
	Force bool `json:"force"`
}

func (r *SweepRequest) Validate(validate *validator.Validate) error {
	r.Date = core.CleanString(r.Date)
	r.GradeSectionID = core.CleanString(r.GradeSectionID)
	r.Session = strings.ToUpper(core.CleanString(r.Session))
	return validate.Struct(r)
}
