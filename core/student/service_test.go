package student_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core/student"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func setup(t *testing.T) (*student.Service, interface {
	student.Repository
	testutil.StudentSeeder
}) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewStudentRepository(db)
	conf := testutil.NewTestConfig()
	return student.NewService(repo, testutil.NewTestLogger(), []byte(conf.SecretKey)), repo
}

func TestService_ResolveByCode(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	stu := testutil.CreateStudent(t, repo, "Amani", "Kabila", "sec-6a", "NID-12345", "ENR-001", true)
	testutil.CreateStudent(t, repo, "Bahati", "Mwamba", "sec-6a", "NID-67890", "ENR-002", false) // inactive

	t.Run("national ID", func(t *testing.T) {
		got, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "NID-12345")
		require.NoError(t, err)
		assert.Equal(t, stu.ID, got.ID)
	})

	t.Run("enrollment code", func(t *testing.T) {
		got, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "ENR-001")
		require.NoError(t, err)
		assert.Equal(t, stu.ID, got.ID)
	})

	t.Run("case-insensitive fallback", func(t *testing.T) {
		got, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "enr-001")
		require.NoError(t, err)
		assert.Equal(t, stu.ID, got.ID)
	})

	t.Run("inactive students never match", func(t *testing.T) {
		_, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "ENR-002")
		assert.True(t, errors.Is(err, student.ErrNotFound))
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "NOPE")
		assert.True(t, errors.Is(err, student.ErrNotFound))
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "   ")
		assert.Error(t, err)
	})

	t.Run("QR badge token", func(t *testing.T) {
		badged := testutil.CreateStudent(t, repo, "Eshe", "Tshala", "sec-6a", "NID-55555", "ENR-005", true)
		token, err := svc.BadgeToken(badged)
		require.NoError(t, err)
		badged.QRToken = token
		repo.AddStudent(badged)

		got, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, token)
		require.NoError(t, err)
		assert.Equal(t, badged.ID, got.ID)
	})

	t.Run("stale QR badge never resolves", func(t *testing.T) {
		stale := testutil.CreateStudent(t, repo, "Furaha", "Ngalula", "sec-6a", "NID-66666", "ENR-006", true)
		token, err := svc.BadgeToken(stale)
		require.NoError(t, err)
		// enrollment code changed after the badge was printed
		stale.EnrollmentCode = "ENR-006B"
		stale.QRToken = token
		repo.AddStudent(stale)

		_, err = svc.ResolveByCode(ctx, testutil.TestInstitutionID, token)
		assert.True(t, errors.Is(err, student.ErrNotFound))
	})

	t.Run("ambiguous code is never resolved silently", func(t *testing.T) {
		testutil.CreateStudent(t, repo, "Chiku", "Ilunga", "sec-6b", "NID-A", "DUP-1", true)
		testutil.CreateStudent(t, repo, "Dada", "Kanku", "sec-6b", "NID-B", "DUP-1", true)

		_, err := svc.ResolveByCode(ctx, testutil.TestInstitutionID, "DUP-1")
		assert.True(t, errors.Is(err, student.ErrAmbiguousMatch))
	})
}

func TestService_QueryEnrolled(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	testutil.CreateStudent(t, repo, "Amani", "Kabila", "sec-6a", "NID-1", "ENR-1", true)
	testutil.CreateStudent(t, repo, "Bahati", "Mwamba", "sec-6a", "NID-2", "ENR-2", false) // inactive
	testutil.CreateStudent(t, repo, "Chiku", "Ilunga", "sec-6b", "NID-3", "ENR-3", true)   // other section

	students, err := svc.QueryEnrolled(ctx, testutil.TestInstitutionID, "sec-6a")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Amani", students[0].FirstName)
}

func TestService_GuardianContacts(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	stu := testutil.CreateStudent(t, repo, "Amani", "Kabila", "sec-6a", "NID-1", "ENR-1", true)
	testutil.CreateGuardian(t, repo, stu, "Maman Kabila", "maman@test.cd")
	repo.AddGuardian(student.Guardian{StudentID: stu.ID, Name: "Papa Kabila", Phone: "+243999000111"}) // no email

	contacts, err := svc.GuardianContacts(ctx, stu.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "maman@test.cd", contacts[0].Address)
	assert.Equal(t, "Maman Kabila", contacts[0].Name)
}
