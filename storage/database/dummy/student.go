package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

// AddStudent seeds a student, assigning an ID if absent.
func (repo *studentRepository) AddStudent(stu student.Student) student.Student {
	repo.db.Lock()
	defer repo.db.Unlock()

	if stu.ID == "" {
		stu.ID = uuid.New().String()
	}
	repo.db.students[stu.ID] = &stu
	return stu
}

// AddGuardian seeds a guardian, assigning an ID if absent.
func (repo *studentRepository) AddGuardian(g student.Guardian) student.Guardian {
	repo.db.Lock()
	defer repo.db.Unlock()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	repo.db.guardians[g.StudentID] = append(repo.db.guardians[g.StudentID], g)
	return g
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.students))
	for _, stu := range repo.db.students {
		students = append(students, *stu)
	}
	return students
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stu, ok := repo.db.students[id]; ok {
		return *stu, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetActiveStudentByCode(
	ctx context.Context, institutionID string, field student.CodeField, code string, fold bool, exec ...core.DBExecutor,
) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(v string) bool {
		if fold {
			return strings.EqualFold(v, code)
		}
		return v == code
	}

	var matches []student.Student
	for _, stu := range repo.query() {
		if stu.InstitutionID != institutionID || !stu.IsActive {
			continue
		}
		var v string
		switch field {
		case student.CodeNationalID:
			v = stu.NationalID
		case student.CodeEnrollment:
			v = stu.EnrollmentCode
		case student.CodeQRToken:
			v = stu.QRToken
		}
		if v != "" && match(v) {
			matches = append(matches, stu)
		}
	}
	switch len(matches) {
	case 0:
		return student.Student{}, student.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return student.Student{}, student.ErrAmbiguousMatch
	}
}

func (repo *studentRepository) QueryEnrolledStudents(ctx context.Context, institutionID, gradeSectionID string, exec ...core.DBExecutor) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var students []student.Student
	for _, stu := range repo.query() {
		if stu.InstitutionID == institutionID && stu.GradeSectionID == gradeSectionID && stu.IsActive {
			students = append(students, stu)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})
	return students, nil
}

func (repo *studentRepository) QueryGuardians(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]student.Guardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	guardians := make([]student.Guardian, len(repo.db.guardians[studentID]))
	copy(guardians, repo.db.guardians[studentID])
	return guardians, nil
}
