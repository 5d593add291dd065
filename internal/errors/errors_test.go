package errors

import (
	"fmt"
	"testing"
)

func TestValidationFamily(t *testing.T) {
	members := []error{
		ErrMissingOrigin,
		ErrMalformedOrigin,
		ErrUnknownDomain,
		ErrEnvironmentMismatch,
		ErrUnauthorizedOrigin,
	}

	for _, member := range members {
		t.Run(member.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("%w: https://x.example.com", member)
			if !Is(wrapped, ErrValidation) {
				t.Errorf("Is(%v, ErrValidation) = false, want true", wrapped)
			}
			if !Is(wrapped, member) {
				t.Errorf("Is(%v, member) = false, want true", wrapped)
			}
		})
	}

	if Is(ErrFileNotFound, ErrValidation) {
		t.Error("ErrFileNotFound must not be a validation error")
	}
	if Is(ErrMissingOrigin, ErrUnknownDomain) {
		t.Error("validation members must be distinct")
	}
}
