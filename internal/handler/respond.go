package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/middleware"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// requestTimeout bounds the store and gateway calls of one request.
const requestTimeout = 30 * time.Second

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Entity  string      `json:"entity,omitempty"`
	Errors  []errorItem `json:"errors,omitempty"`
}

type errorItem struct {
	Entity  string `json:"entity,omitempty"`
	Message string `json:"message"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindArgument:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindAlreadyInUse:
		return http.StatusConflict
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// writeError writes err as JSON. Errors without a kind are logged and
// reported as a bare 500 so internals do not leak.
func writeError(c echo.Context, logger *logrus.Logger, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.JSON(http.StatusGatewayTimeout, errorBody{Error: "timeout"})
		}
		logger.WithContext(c.Request().Context()).WithError(err).WithField("route", c.Path()).Error("request failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
	body := errorBody{Error: string(ae.Kind), Message: ae.Message, Entity: ae.Entity}
	for _, sub := range ae.Errors {
		body.Errors = append(body.Errors, errorItem{Entity: sub.Entity, Message: sub.Message})
	}
	if ae.Kind == apperr.KindServiceUnavailable && ae.Cause != nil {
		logger.WithContext(c.Request().Context()).WithError(ae.Cause).WithField("route", c.Path()).Warn("upstream unavailable")
	}
	return c.JSON(statusOf(ae.Kind), body)
}

// bindAndValidate decodes the body into req and runs its validate tags.
// Validation failures become one Argument error with an item per field.
func bindAndValidate(c echo.Context, v *validator.Validate, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Argument("body", "invalid body")
	}
	err := v.StructCtx(c.Request().Context(), req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return apperr.Argument("body", "%s", err.Error())
	}
	items := make([]*apperr.Error, 0, len(fields))
	for _, f := range fields {
		items = append(items, apperr.Argument(jsonPath(f.Namespace()), "invalid '%s' with value '%v' (%s)", f.Field(), f.Value(), f.Tag()))
	}
	return apperr.Arguments("body", items)
}

// jsonPath drops the struct name prefix of a validator namespace.
func jsonPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// agentOf builds the transaction agent from the access token claims.
func agentOf(c echo.Context, programName string) (model.Party, error) {
	claims := middleware.ClaimsOf(c)
	if claims == nil || claims.Subject == "" {
		return model.Party{}, apperr.Forbidden("access token required")
	}
	p := model.Party{ID: claims.Subject, TypeOf: model.PartyTypePerson, Name: claims.Name}
	if claims.MembershipNumber != "" {
		p.MemberOf = &model.MemberOf{MembershipNumber: claims.MembershipNumber, ProgramName: programName}
	}
	return p, nil
}

// agentID returns the subject of the access token.
func agentID(c echo.Context) string {
	if claims := middleware.ClaimsOf(c); claims != nil {
		return claims.Subject
	}
	return ""
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// NewValidator returns the validator shared by all handlers. Tags are read
// from the json names so error paths match the request body.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
