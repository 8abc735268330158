package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/withdrawal"
)

type withdrawalApi struct {
	svc      *withdrawal.Service
	validate *validator.Validate
}

func registerWithdrawalAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *withdrawal.Service,
	validate *validator.Validate,
) {
	api := withdrawalApi{svc: svc, validate: validate}

	wg := g.Group("/withdrawals", jwt)

	wg.POST("", api.create, roleMiddleware(RoleTeacher, RoleStaff))
	wg.POST("/:id/decision", api.decide, roleMiddleware(RoleStaff))
	wg.GET("", api.query, roleMiddleware(RoleTeacher, RoleStaff))
	wg.GET("/:id", api.retrieve, roleMiddleware(RoleTeacher, RoleStaff))
}

// Handlers

func (api *withdrawalApi) create(ctx echo.Context) error {
	var data withdrawal.NewWithdrawalRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWithdrawalRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	wd, err := api.svc.Create(ctx.Request().Context(), claims.InstitutionID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating withdrawal")
	}
	return ctx.JSON(http.StatusCreated, wd)
}

func (api *withdrawalApi) decide(ctx echo.Context) error {
	var data withdrawal.DecisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DecisionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	wd, err := api.svc.Decide(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "deciding withdrawal")
	}
	return ctx.JSON(http.StatusOK, wd)
}

func (api *withdrawalApi) query(ctx echo.Context) error {
	filter := withdrawal.QueryFilter{
		Date:      core.CleanString(ctx.QueryParam("date")),
		StudentID: core.CleanString(ctx.QueryParam("student_id")),
		Status:    withdrawal.Status(strings.ToUpper(core.CleanString(ctx.QueryParam("status")))),
	}
	var ordering Ordering
	ordering.Bind(ctx)

	withdrawals, err := api.svc.Filter(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "filtering withdrawals")
	}
	return ctx.JSON(http.StatusOK, withdrawals)
}

func (api *withdrawalApi) retrieve(ctx echo.Context) error {
	wd, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting withdrawal")
	}
	return ctx.JSON(http.StatusOK, wd)
}
