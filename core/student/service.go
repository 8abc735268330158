package student

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
	// ErrAmbiguousMatch means a code matched more than one active student.
	// This is a data-integrity fault and must never be resolved silently.
	ErrAmbiguousMatch = errors.New("code matches more than one student")
)

type (
	Repository interface {
		GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// GetActiveStudentByCode matches code exactly against one identity
		// field of active students within an institution; fold makes the
		// comparison case-insensitive. Returns ErrNotFound on zero matches
		// and ErrAmbiguousMatch on more than one.
		GetActiveStudentByCode(ctx context.Context, institutionID string, field CodeField, code string, fold bool, exec ...core.DBExecutor) (Student, error)
		// QueryEnrolledStudents returns all active students of a grade-section.
		QueryEnrolledStudents(ctx context.Context, institutionID, gradeSectionID string, exec ...core.DBExecutor) ([]Student, error)
		QueryGuardians(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Guardian, error)
	}

	Service struct {
		repo      Repository
		logger    core.Logger
		secretKey []byte
	}
)

func NewService(repo Repository, logger core.Logger, secretKey []byte) *Service {
	return &Service{repo: repo, logger: logger, secretKey: secretKey}
}

// ResolveByCode maps a scanned/typed code to a single active student.
// Exact matches against national ID, enrollment code and QR token are tried
// in order; if none hit, the same comparisons are retried case-insensitively.
func (svc *Service) ResolveByCode(ctx context.Context, institutionID, code string) (Student, error) {
	code = core.CleanString(code)
	if code == "" {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: "this field is required"})
	}

	for _, fold := range []bool{false, true} {
		for _, field := range ResolveOrder {
			stu, err := svc.repo.GetActiveStudentByCode(ctx, institutionID, field, code, fold)
			if err == nil {
				if field == CodeQRToken {
					// the stored badge token goes stale when the enrollment
					// code changes; a stale badge must not resolve
					if verr := VerifyQRToken(svc.secretKey, stu, code); verr != nil {
						svc.logger.Warn(fmt.Sprintf("stale QR badge for student %s", stu.ID), verr)
						continue
					}
				}
				return stu, nil
			}
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if errors.Is(err, ErrAmbiguousMatch) {
				svc.logger.Error(
					fmt.Sprintf("ambiguous student code %q on %s (institution %s)", code, field, institutionID),
					err,
				)
			}
			return Student{}, err
		}
	}
	return Student{}, ErrNotFound
}

// BadgeToken returns the signed token to encode in a student's QR badge.
func (svc *Service) BadgeToken(stu Student) (string, error) {
	return MakeQRToken(svc.secretKey, stu)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) QueryEnrolled(ctx context.Context, institutionID, gradeSectionID string) ([]Student, error) {
	return svc.repo.QueryEnrolledStudents(ctx, institutionID, gradeSectionID)
}

// GuardianContacts returns the notifiable addresses for a student's guardians.
func (svc *Service) GuardianContacts(ctx context.Context, studentID string) ([]mail.Address, error) {
	guardians, err := svc.repo.QueryGuardians(ctx, studentID)
	if err != nil {
		return nil, err
	}
	contacts := make([]mail.Address, 0, len(guardians))
	for _, g := range guardians {
		if g.Email != "" {
			contacts = append(contacts, mail.Address{Name: g.Name, Address: g.Email})
		}
	}
	return contacts, nil
}
