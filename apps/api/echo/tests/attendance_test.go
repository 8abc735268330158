package tests

import (
	"net/http"
	"net/url"
	"testing"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/attendance"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func Test_attendanceApi_gateScan(t *testing.T) {
	date := "2021-04-05"
	testutil.CreateStudent(t, stuRepo, "Amani", "Kabila", "sec-g1", "NID-G1", "G-001", true)

	gateToken := getToken(t, "gate-device-1", RoleGate)
	teacherToken := getToken(t, "teacher-1", RoleTeacher)

	body := marchallObj(t, attendance.GateScanRequest{Code: "G-001", Date: date})

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/attendance/gate-scan", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Gate or staff role required", method: http.MethodPost, path: "/v1/attendance/gate-scan",
			body: body, token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Validation", method: http.MethodPost, path: "/v1/attendance/gate-scan",
			body: marchallObj(t, attendance.GateScanRequest{}), token: gateToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "this field is required", "date": "this field is required"}),
		},
		{
			name: "Date format", method: http.MethodPost, path: "/v1/attendance/gate-scan",
			body: marchallObj(t, attendance.GateScanRequest{Code: "G-001", Date: "05/04/2021"}), token: gateToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"date": "must be a date in YYYY-MM-DD format"}),
		},
		{
			name: "Unknown code", method: http.MethodPost, path: "/v1/attendance/gate-scan",
			body: marchallObj(t, attendance.GateScanRequest{Code: "NO-SUCH", Date: date}), token: gateToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Scan before cutoff", func(t *testing.T) {
		setNow(t, date, "07:20")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/gate-scan", gateToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res attendance.RecordResult
		decodeResult(t, rec, &res)
		if res.Outcome != attendance.OutcomeCreated {
			t.Errorf("Outcome = %v, want %v", res.Outcome, attendance.OutcomeCreated)
		}
		if res.State != attendance.StatePresent {
			t.Errorf("State = %v, want %v", res.State, attendance.StatePresent)
		}
	})

	t.Run("Rescan is a duplicate", func(t *testing.T) {
		setNow(t, date, "07:50")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/gate-scan", gateToken, body)
		app.ServeHTTP(rec, req)

		var res attendance.RecordResult
		decodeResult(t, rec, &res)
		if res.Outcome != attendance.OutcomeDuplicate {
			t.Errorf("Outcome = %v, want %v", res.Outcome, attendance.OutcomeDuplicate)
		}
		if res.State != attendance.StatePresent {
			t.Errorf("State = %v, want first scan's %v", res.State, attendance.StatePresent)
		}
	})
}

func Test_attendanceApi_recordEntry(t *testing.T) {
	date := "2021-04-06"
	testutil.CreateSchedule(t, schedRepo, "sec-g2", "AM", "07:30", "11:30", 10)
	testutil.CreateStudent(t, stuRepo, "Bahati", "Mwamba", "sec-g2", "NID-E1", "E-001", true)
	testutil.CreateStudent(t, stuRepo, "Chiku", "Ilunga", "sec-g2", "NID-E2", "E-002", true)

	teacherToken := getToken(t, "teacher-1", RoleTeacher)
	gateToken := getToken(t, "gate-device-1", RoleGate)

	t.Run("Teacher or staff role required", func(t *testing.T) {
		tt := httpTest{
			token: gateToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", tt.token,
			marchallObj(t, attendance.EntryRequest{Code: "E-001", Date: date}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("QR scan within tolerance", func(t *testing.T) {
		setNow(t, date, "07:35")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", teacherToken,
			marchallObj(t, attendance.EntryRequest{Code: "E-001", Date: date}))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res attendance.RecordResult
		decodeResult(t, rec, &res)
		if res.State != attendance.StatePresent {
			t.Errorf("State = %v, want %v", res.State, attendance.StatePresent)
		}
		if res.Session != attendance.SessionAM {
			t.Errorf("Session = %v, want %v", res.Session, attendance.SessionAM)
		}
	})

	t.Run("Manual entry with desired state", func(t *testing.T) {
		setNow(t, date, "08:00")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", teacherToken,
			marchallObj(t, attendance.EntryRequest{Code: "E-002", Date: date, DesiredState: "LATE"}))
		app.ServeHTTP(rec, req)

		var res attendance.RecordResult
		decodeResult(t, rec, &res)
		if res.State != attendance.StateLate {
			t.Errorf("State = %v, want %v", res.State, attendance.StateLate)
		}
	})
}

func Test_attendanceApi_verify(t *testing.T) {
	date := "2021-04-07"
	testutil.CreateSchedule(t, schedRepo, "sec-g3", "AM", "07:30", "11:30", 10)
	stu := testutil.CreateStudent(t, stuRepo, "Dada", "Kanku", "sec-g3", "NID-V1", "V-001", true)

	gateToken := getToken(t, "gate-device-1", RoleGate)
	teacherToken := getToken(t, "teacher-1", RoleTeacher)
	staffToken := getToken(t, "staff-1", RoleStaff)

	setNow(t, date, "07:35")
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/gate-scan", gateToken,
		marchallObj(t, attendance.GateScanRequest{Code: "V-001", Date: date}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("gate scan failed: %v %s", rec.Code, rec.Body.String())
	}

	body := marchallObj(t, attendance.VerifyRequest{StudentID: stu.ID, Date: date, Decision: "approve"})

	t.Run("Teacher role required", func(t *testing.T) {
		tt := httpTest{token: staffToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/verify", tt.token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("No gate entry", func(t *testing.T) {
		ghost := testutil.CreateStudent(t, stuRepo, "Eshe", "Mutombo", "sec-g3", "NID-V2", "V-002", true)
		tt := httpTest{
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "attendance record not found"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/verify", teacherToken,
			marchallObj(t, attendance.VerifyRequest{StudentID: ghost.ID, Date: date, Decision: "approve"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Approve resolves from ingress time", func(t *testing.T) {
		setNow(t, date, "09:00")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/verify", teacherToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res attendance.RecordResult
		decodeResult(t, rec, &res)
		if res.State != attendance.StatePresent {
			t.Errorf("State = %v, want %v (ingress was within tolerance)", res.State, attendance.StatePresent)
		}
	})
}

func Test_attendanceApi_sweep(t *testing.T) {
	date := "2021-04-08"
	testutil.CreateSchedule(t, schedRepo, "sec-g4", "AM", "07:30", "11:30", 10)
	testutil.CreateStudent(t, stuRepo, "Furaha", "Ngalula", "sec-g4", "NID-S1", "S-001", true)
	testutil.CreateStudent(t, stuRepo, "Gracia", "Kalenga", "sec-g4", "NID-S2", "S-002", true)

	teacherToken := getToken(t, "teacher-1", RoleTeacher)
	staffToken := getToken(t, "staff-1", RoleStaff)

	setNow(t, date, "07:35")
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", teacherToken,
		marchallObj(t, attendance.EntryRequest{Code: "S-001", Date: date}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan failed: %v %s", rec.Code, rec.Body.String())
	}

	body := marchallObj(t, attendance.SweepRequest{Date: date, GradeSectionID: "sec-g4", Session: "AM"})

	t.Run("Staff role required", func(t *testing.T) {
		tt := httpTest{token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sweep", tt.token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Not due before class end", func(t *testing.T) {
		setNow(t, date, "10:00")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sweep", staffToken, body)
		app.ServeHTTP(rec, req)

		var res attendance.SweepResult
		decodeResult(t, rec, &res)
		if !res.NotYetDue {
			t.Error("NotYetDue = false, want true")
		}
		if res.MinutesRemaining != 90 {
			t.Errorf("MinutesRemaining = %d, want 90", res.MinutesRemaining)
		}
	})

	t.Run("No schedule requires force", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"grade_section_id": "no class schedule found; pass force to sweep anyway"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sweep", staffToken,
			marchallObj(t, attendance.SweepRequest{Date: date, GradeSectionID: "sec-nowhere", Session: "PM"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Sweeps after class end", func(t *testing.T) {
		setNow(t, date, "11:45")
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sweep", staffToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res attendance.SweepResult
		decodeResult(t, rec, &res)
		if res.Considered != 2 {
			t.Errorf("Considered = %d, want 2", res.Considered)
		}
		if res.MarkedAbsent != 1 {
			t.Errorf("MarkedAbsent = %d, want 1", res.MarkedAbsent)
		}
		if res.AlreadyRecorded != 1 {
			t.Errorf("AlreadyRecorded = %d, want 1", res.AlreadyRecorded)
		}
	})
}

func Test_attendanceApi_queryAndHistory(t *testing.T) {
	date := "2021-04-09"
	testutil.CreateSchedule(t, schedRepo, "sec-g5", "AM", "07:30", "11:30", 10)
	stu := testutil.CreateStudent(t, stuRepo, "Héritier", "Kasongo", "sec-g5", "NID-Q1", "Q-001", true)

	teacherToken := getToken(t, "teacher-1", RoleTeacher)

	setNow(t, date, "07:50")
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", teacherToken,
		marchallObj(t, attendance.EntryRequest{Code: "Q-001", Date: date}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan failed: %v %s", rec.Code, rec.Body.String())
	}

	var recID string

	t.Run("Query by date and state", func(t *testing.T) {
		v := make(url.Values)
		v.Add("date", date)
		v.Add("state", "late")
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance?"+v.Encode(), teacherToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var records []attendance.Record
		decodeResult(t, rec, &records)
		if len(records) != 1 {
			t.Fatalf("len(records) = %d, want 1", len(records))
		}
		if records[0].StudentID != stu.ID {
			t.Errorf("StudentID = %q, want %q", records[0].StudentID, stu.ID)
		}
		recID = records[0].ID
	})

	t.Run("Query miss", func(t *testing.T) {
		v := make(url.Values)
		v.Add("date", date)
		v.Add("state", "absent")
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance?"+v.Encode(), teacherToken)
		app.ServeHTTP(rec, req)

		var records []attendance.Record
		decodeResult(t, rec, &records)
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})

	t.Run("History", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/"+recID+"/history", teacherToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var hists []attendance.StateHistory
		decodeResult(t, rec, &hists)
		if len(hists) != 1 {
			t.Fatalf("len(history) = %d, want 1", len(hists))
		}
		if hists[0].State != attendance.StateLate {
			t.Errorf("State = %v, want %v", hists[0].State, attendance.StateLate)
		}
	})

	t.Run("Unknown record", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "attendance record not found"}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/no-such/history", teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
