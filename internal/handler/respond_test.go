package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
)

func TestWriteErrorStatus(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("transaction"), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", apperr.Argument("offers", "empty")), http.StatusBadRequest},
		{apperr.Forbidden("not yours"), http.StatusForbidden},
		{apperr.AlreadyInUse("seat", "taken"), http.StatusConflict},
		{apperr.ServiceUnavailable(errors.New("dial"), "down"), http.StatusServiceUnavailable},
		{apperr.NotImplemented("point backend"), http.StatusNotImplemented},
		{fmt.Errorf("gateway call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		assert.NoError(t, writeError(c, logger, tc.err))
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	_ = writeError(c, logger, errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestJSONPath(t *testing.T) {
	assert.Equal(t, "offers[0].seatNumber", jsonPath("seatReservationReq.offers[0].seatNumber"))
	assert.Equal(t, "scope", jsonPath("scope"))
}
