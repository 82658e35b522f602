package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrCompetitionUnavailable is returned by the cached-competition
	// query before the first successful standings fetch.
	ErrCompetitionUnavailable = errors.New("no competition cached yet")
)

// Auth flow stage names, in protocol order.
const (
	AuthStageInitiate          = "initiate"
	AuthStageAuthorizeRedirect = "authorize-redirect"
	AuthStageConsentForm       = "consent-form"
	AuthStageConsentSubmit     = "consent-submit"
	AuthStageExtractToken      = "extract-token"
	AuthStageGameAPIBootstrap  = "game-api-bootstrap"
	AuthStageParseFinalToken   = "parse-final-token"
)

// AuthFlowError marks a failure of one stage of the access-token
// handshake. Later stages are never attempted once an earlier one
// fails.
type AuthFlowError struct {
	Stage      string
	HTTPStatus int
	Detail     string
	Err        error
}

func (e *AuthFlowError) Error() string {
	msg := fmt.Sprintf("auth flow failed at stage %q", e.Stage)
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (http status %d)", e.HTTPStatus)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthFlowError) Unwrap() error { return e.Err }

// StandingsFetchError is a non-200 answer from the standings endpoint.
type StandingsFetchError struct {
	HTTPStatus    int
	StatusMessage string
}

func (e *StandingsFetchError) Error() string {
	return fmt.Sprintf("standings fetch failed with status %d %s", e.HTTPStatus, e.StatusMessage)
}

// AuthRejected reports whether the status indicates a stale or invalid
// bearer token, recoverable only by a full re-acquisition.
func (e *StandingsFetchError) AuthRejected() bool {
	return e.HTTPStatus == 401 || e.HTTPStatus == 403
}

// MalformedScheduleError aborts a whole season mapping; a partial
// season is never produced.
type MalformedScheduleError struct {
	Reason string
	Err    error
}

func (e *MalformedScheduleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed season schedule: %s: %v", e.Reason, e.Err)
	}
	return "malformed season schedule: " + e.Reason
}

func (e *MalformedScheduleError) Unwrap() error { return e.Err }
