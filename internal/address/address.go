// Package address validates shipping addresses before checkout commits
// to them.
package address

import (
	"context"

	"github.com/calloway/stitch/internal/domain"
)

// Validator checks that an address is complete and deliverable.
// Implementations can call external APIs; BasicValidator is format-only.
type Validator interface {
	Validate(ctx context.Context, addr domain.ShippingAddress) (*ValidationResult, error)
}

// ValidationResult contains the outcome of address validation.
type ValidationResult struct {
	IsValid bool
	Errors  []ValidationError
}

// ValidationError represents a specific validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
