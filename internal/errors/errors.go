package errors

import "errors"

// ErrValidation is the parent of every origin validation failure. Anything
// matching it is answered with 403 at the trigger boundary.
var ErrValidation = errors.New("validation failed")

// validationError is a member of the ErrValidation family.
type validationError string

func (e validationError) Error() string { return string(e) }

func (e validationError) Is(target error) bool { return target == ErrValidation }

var (
	ErrMissingOrigin       error = validationError("No origin provided in request")
	ErrMalformedOrigin     error = validationError("Request origin has no hostname")
	ErrUnknownDomain       error = validationError("Request does not come from an allowed domain")
	ErrEnvironmentMismatch error = validationError("Request does not come from the current environment")
	ErrUnauthorizedOrigin  error = validationError("Request does not come from an allowed origin")
)

var (
	ErrBadRequest       = errors.New("no infile key provided in request body")
	ErrFileNotFound     = errors.New("file not found")
	ErrStorage          = errors.New("storage error")
	ErrNoTaskDefinition = errors.New("no task definitions found")
	ErrNoSecurityGroup  = errors.New("security group not found")
	ErrDecode           = errors.New("content is not valid utf-8")
	ErrTransform        = errors.New("transformation failed")
	ErrInvalidKey       = errors.New("invalid work item key")
	ErrExists           = errors.New("object already exists")
)

// Is, As and New mirror the standard library so callers importing this
// package under its own name still have the usual helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
