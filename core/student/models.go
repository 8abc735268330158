package student

import (
	"strings"
	"time"
)

// CodeField identifies which student identity field a raw code is matched
// against. Resolution tries the fields in ResolveOrder.
type CodeField string

const (
	CodeNationalID CodeField = "national_id"
	CodeEnrollment CodeField = "enrollment_code"
	CodeQRToken    CodeField = "qr_token"
)

// ResolveOrder is the exact-match precedence for identity resolution.
var ResolveOrder = []CodeField{CodeNationalID, CodeEnrollment, CodeQRToken}

// Student is owned by the external enrollment system; the engine only reads it.
type Student struct {
	ID             string    `json:"id"`
	InstitutionID  string    `json:"institution_id"`
	NationalID     string    `json:"national_id"`
	EnrollmentCode string    `json:"enrollment_code"`
	QRToken        string    `json:"qr_token"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	GradeSectionID string    `json:"grade_section_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Guardian is a contact linked to a student; notifications go to guardians.
type Guardian struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}
