// Package validator decides whether an inbound trigger comes from a caller
// allowed to start work in the current environment.
package validator

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/savaki/stage-pipeline/internal/environment"
	"github.com/savaki/stage-pipeline/internal/errors"
)

// Result is the outcome of validating one trigger.
type Result struct {
	Allowed bool
	Origin  string // lower-cased origin as sent by the caller, may be empty
	Reason  error  // nil when Allowed
}

// Validator checks trigger origins against the environment table.
type Validator struct {
	env             environment.Environment
	table           environment.Table
	callerSubdomain string
}

// New returns a Validator for a service running in env. callerSubdomain is the
// subdomain expected for rows of table that do not name their own.
func New(env environment.Environment, table environment.Table, callerSubdomain string) *Validator {
	return &Validator{
		env:             env,
		table:           table,
		callerSubdomain: strings.ToLower(strings.TrimSpace(callerSubdomain)),
	}
}

// OriginFrom returns the lower-cased origin header and whether one was sent.
// Header names are compared without regard to case so maps built outside
// net/http (e.g. API Gateway events) behave the same as canonical headers.
func OriginFrom(headers http.Header) (string, bool) {
	for name, values := range headers {
		if !strings.EqualFold(name, "origin") || len(values) == 0 {
			continue
		}
		return strings.ToLower(strings.TrimSpace(values[0])), true
	}
	return "", false
}

// Validate returns the decision for a trigger carrying headers.
func (v *Validator) Validate(headers http.Header) Result {
	origin, ok := OriginFrom(headers)
	if !ok {
		return deny(origin, errors.ErrMissingOrigin)
	}

	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return deny(origin, fmt.Errorf("%w: %q", errors.ErrMalformedOrigin, origin))
	}

	row, ok := v.table.Match(u.Hostname())
	if !ok {
		return deny(origin, fmt.Errorf("%w: %s", errors.ErrUnknownDomain, origin))
	}
	if row.Env != v.env {
		return deny(origin, fmt.Errorf("%w (%s): %s", errors.ErrEnvironmentMismatch, v.env, origin))
	}

	subdomain := row.CallerSubdomain
	if subdomain == "" {
		subdomain = v.callerSubdomain
	}
	if want := "https://" + subdomain + "." + row.Domain; origin != want {
		return deny(origin, fmt.Errorf("%w: %s", errors.ErrUnauthorizedOrigin, origin))
	}

	return Result{Allowed: true, Origin: origin}
}

func deny(origin string, reason error) Result {
	return Result{Origin: origin, Reason: reason}
}
