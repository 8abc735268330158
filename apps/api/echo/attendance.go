package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *attendance.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{svc: svc, validate: validate}

	ag := g.Group("/attendance", jwt)

	ag.POST("/gate-scan", api.gateScan, roleMiddleware(RoleGate, RoleStaff))
	ag.POST("/scan", api.recordEntry, roleMiddleware(RoleTeacher, RoleStaff))
	ag.POST("/verify", api.verify, roleMiddleware(RoleTeacher))
	ag.POST("/sweep", api.sweep, roleMiddleware(RoleStaff))
	ag.GET("", api.query, roleMiddleware(RoleTeacher, RoleStaff))
	ag.GET("/:id/history", api.history, roleMiddleware(RoleTeacher, RoleStaff))
}

// Handlers

func (api *attendanceApi) gateScan(ctx echo.Context) error {
	var data attendance.GateScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GateScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.RecordGateScan(ctx.Request().Context(), claims.InstitutionID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "recording gate scan")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) recordEntry(ctx echo.Context) error {
	var data attendance.EntryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EntryRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.RecordEntry(ctx.Request().Context(), claims.InstitutionID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "recording entry")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) verify(ctx echo.Context) error {
	var data attendance.VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.VerifyGateEntry(ctx.Request().Context(), claims.InstitutionID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "verifying gate entry")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) sweep(ctx echo.Context) error {
	var data attendance.SweepRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SweepRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.SweepAbsences(ctx.Request().Context(), claims.InstitutionID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "sweeping absences")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := attendance.QueryFilter{
		Date:           core.CleanString(ctx.QueryParam("date")),
		GradeSectionID: core.CleanString(ctx.QueryParam("grade_section_id")),
		Session:        attendance.Session(strings.ToUpper(core.CleanString(ctx.QueryParam("session")))),
		StudentID:      core.CleanString(ctx.QueryParam("student_id")),
		State:          attendance.StateCode(strings.ToUpper(core.CleanString(ctx.QueryParam("state")))),
	}
	var ordering Ordering
	ordering.Bind(ctx)

	records, err := api.svc.Filter(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "filtering records")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	hists, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying state history")
	}
	return ctx.JSON(http.StatusOK, hists)
}
