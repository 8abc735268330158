package testutil

import (
	"io/ioutil"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

// TestInstitutionID scopes all fixture data.
const TestInstitutionID = "11111111-1111-1111-1111-111111111111"

// NewTestConfig returns a config suitable for unit tests (no env lookups).
func NewTestConfig() *core.Config {
	return &core.Config{
		TestMode:  true,
		Env:       "test",
		AppName:   "Mahudhurio",
		SecretKey: "|&TEST-SECRET-KEY&|",
		DefaultFromEmail: mail.Address{
			Name:    "Mahudhurio",
			Address: "noreply@test.cd",
		},
		Server: core.ServerConfig{
			JWTExpirationDelta: 10 * time.Minute,
		},
		Attendance: core.AttendanceConfig{
			Timezone:         "Africa/Lubumbashi",
			GateCutoff:       "07:30",
			GateToleranceMin: 10,
			ResultCacheTTL:   5 * time.Second,
			ResultCacheCap:   512,
		},
	}
}

// NewTestLogger returns a quiet core.Logger.
func NewTestLogger() core.Logger {
	return &testLogger{std: log.New(ioutil.Discard, "", 0)}
}

type testLogger struct {
	std *log.Logger
}

func (l testLogger) Debug(msg string, args ...interface{}) { l.std.Println(msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.std.Println(msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.std.Println(msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.std.Println(msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.std.Println(msg, args) }

// Seeder interfaces implemented by the dummy repositories.
type (
	StudentSeeder interface {
		AddStudent(student.Student) student.Student
		AddGuardian(student.Guardian) student.Guardian
	}
	ScheduleSeeder interface {
		AddClassSchedule(schedule.ClassSchedule) schedule.ClassSchedule
	}
)

func CreateStudent(
	t *testing.T,
	repo StudentSeeder,
	firstName, lastName, gradeSectionID, nationalID, enrollmentCode string,
	isActive bool,
) student.Student {
	t.Helper()
	tstamp := time.Now().UTC()
	return repo.AddStudent(student.Student{
		InstitutionID:  TestInstitutionID,
		NationalID:     nationalID,
		EnrollmentCode: enrollmentCode,
		FirstName:      firstName,
		LastName:       lastName,
		GradeSectionID: gradeSectionID,
		IsActive:       isActive,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
}

func CreateGuardian(t *testing.T, repo StudentSeeder, stu student.Student, name, email string) student.Guardian {
	t.Helper()
	return repo.AddGuardian(student.Guardian{
		StudentID: stu.ID,
		Name:      name,
		Email:     email,
	})
}

func CreateSchedule(
	t *testing.T,
	repo ScheduleSeeder,
	gradeSectionID, session, startTime, endTime string,
	toleranceMin int,
) schedule.ClassSchedule {
	t.Helper()
	return repo.AddClassSchedule(schedule.ClassSchedule{
		InstitutionID:  TestInstitutionID,
		GradeSectionID: gradeSectionID,
		Session:        session,
		StartTime:      startTime,
		EndTime:        endTime,
		ToleranceMin:   toleranceMin,
	})
}
