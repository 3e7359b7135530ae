// Package gateway holds HTTP clients for the external services a place-order
// transaction depends on: the seat reservation system, the card payment
// gateway, the point ledger and the movie-ticket voucher service.
//
// Every non-2xx answer becomes a *StatusError wrapped in an *apperr.Error:
// codes below 500 are the caller's fault (Argument) and the rest mean the
// service failed (ServiceUnavailable). Transport failures are
// ServiceUnavailable as well.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
)

// StatusError is a non-2xx response from a gateway.
type StatusError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.Path, e.StatusCode, e.Body)
}

// IsConflict reports whether err is a 409 answer. The seat reservation
// gateway answers 409 when a requested seat is already reserved.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}

// classify wraps a StatusError into the matching application error.
func classify(e *StatusError) error {
	kind := apperr.KindServiceUnavailable
	if e.StatusCode < http.StatusInternalServerError {
		kind = apperr.KindArgument
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return &apperr.Error{Kind: kind, Entity: e.Service, Message: msg, Cause: e}
}

// client is the JSON-over-HTTP plumbing shared by all gateways.
type client struct {
	service string
	baseURL string
	token   string
	logger  *logrus.Logger
	hc      *http.Client
}

func newClient(service, baseURL, token string, logger *logrus.Logger, hc *http.Client) client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
		hc:      hc,
	}
}

// do sends in as JSON (when not nil) and decodes the answer into out (when
// not nil).
func (c client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	hr, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error()
		return err
	}
	hr.Header.Add("Content-Type", "application/json")
	hr.Header.Add("Accept", "application/json")
	if c.token != "" {
		hr.Header.Add("Authorization", "Bearer "+c.token)
	}

	hresp, err := c.hc.Do(hr)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("service", c.service).Error("gateway request failed")
		return apperr.ServiceUnavailable(err, "%s unreachable", c.service)
	}
	defer hresp.Body.Close()

	respBody, err := io.ReadAll(hresp.Body)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("service", c.service).Error("read gateway response")
		return apperr.ServiceUnavailable(err, "%s response unreadable", c.service)
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		se := &StatusError{Service: c.service, Method: method, Path: path, StatusCode: hresp.StatusCode, Body: string(respBody)}
		c.logger.WithContext(ctx).WithError(se).Warn("gateway returned an error")
		return classify(se)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("service", c.service).Error("decode gateway response")
		return apperr.ServiceUnavailable(err, "%s response undecodable", c.service)
	}
	return nil
}
