package withdrawal

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

// Status is a withdrawal request's lifecycle state. Terminal statuses
// trigger a retroactive ledger reconciliation.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAuthorized Status = "AUTHORIZED"
	StatusRejected   Status = "REJECTED"
)

func (s Status) Terminal() bool {
	return s == StatusAuthorized || s == StatusRejected
}

// Withdrawal is an early-leave request for a student on a given date.
type Withdrawal struct {
	ID            string      `json:"id"`
	InstitutionID string      `json:"institution_id"`
	StudentID     string      `json:"student_id"`
	Date          string      `json:"date"`
	Reason        string      `json:"reason"`
	RequestedBy   string      `json:"requested_by"`
	RequestedAt   time.Time   `json:"requested_at"` // UTC
	Status        Status      `json:"status"`
	DecidedBy     null.String `json:"decided_by"`
	DecidedAt     null.Time   `json:"decided_at"` // UTC
	Observations  null.String `json:"observations"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

// QueryFilter applies AND on available fields when listing withdrawals.
type QueryFilter struct {
	Date      string
	StudentID string
	Status    Status
}

// Requests

type NewWithdrawalRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,dateonly"`
	Reason    string `json:"reason" validate:"required"`
}

func (r *NewWithdrawalRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.Date = core.CleanString(r.Date)
	r.Reason = core.CleanString(r.Reason)
	return validate.Struct(r)
}

type DecisionRequest struct {
	Authorized   *bool  `json:"authorized" validate:"required"`
	Observations string `json:"observations"`
}

func (r *DecisionRequest) Validate(validate *validator.Validate) error {
	r.Observations = core.CleanString(r.Observations)
	return validate.Struct(r)
}
