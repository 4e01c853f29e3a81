package address

import (
	"context"
	"strings"

	"github.com/calloway/stitch/internal/domain"
)

// BasicValidator performs required-field and delivery-country checks
// without external API calls.
type BasicValidator struct {
	// countries is the set of deliverable ISO country codes, uppercase.
	// Empty means any country is accepted.
	countries map[string]struct{}
}

var _ Validator = (*BasicValidator)(nil)

// NewBasicValidator creates a basic address validator limited to the
// given delivery countries (ISO 3166-1 alpha-2 codes).
func NewBasicValidator(deliveryCountries ...string) *BasicValidator {
	v := &BasicValidator{}
	if len(deliveryCountries) > 0 {
		v.countries = make(map[string]struct{}, len(deliveryCountries))
		for _, c := range deliveryCountries {
			v.countries[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
		}
	}
	return v
}

func (v *BasicValidator) Validate(ctx context.Context, addr domain.ShippingAddress) (*ValidationResult, error) {
	var errs []ValidationError

	required := []struct {
		field, value string
	}{
		{"fullName", addr.FullName},
		{"addressLine1", addr.AddressLine1},
		{"city", addr.City},
		{"state", addr.State},
		{"postalCode", addr.PostalCode},
		{"country", addr.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, ValidationError{Field: r.field, Message: "is required"})
		}
	}

	if v.countries != nil && strings.TrimSpace(addr.Country) != "" {
		if _, ok := v.countries[strings.ToUpper(strings.TrimSpace(addr.Country))]; !ok {
			errs = append(errs, ValidationError{Field: "country", Message: "we do not deliver to this country"})
		}
	}

	return &ValidationResult{IsValid: len(errs) == 0, Errors: errs}, nil
}
