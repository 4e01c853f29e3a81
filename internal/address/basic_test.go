package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/stitch/internal/domain"
)

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:     "Priya Nair",
		AddressLine1: "14 Hill Road",
		City:         "Mumbai",
		State:        "MH",
		PostalCode:   "400050",
		Country:      "IN",
	}
}

func TestBasicValidator_Valid(t *testing.T) {
	v := NewBasicValidator("IN")
	res, err := v.Validate(context.Background(), validAddress())
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
}

func TestBasicValidator_MissingFields(t *testing.T) {
	v := NewBasicValidator("IN")
	addr := validAddress()
	addr.FullName = ""
	addr.PostalCode = "   "

	res, err := v.Validate(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, res.IsValid)

	fields := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"fullName", "postalCode"}, fields)
}

func TestBasicValidator_UndeliverableCountry(t *testing.T) {
	v := NewBasicValidator("IN")
	addr := validAddress()
	addr.Country = "US"

	res, err := v.Validate(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "country", res.Errors[0].Field)
}

func TestBasicValidator_AnyCountryWhenUnrestricted(t *testing.T) {
	v := NewBasicValidator()
	addr := validAddress()
	addr.Country = "US"

	res, err := v.Validate(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}
