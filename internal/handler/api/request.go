package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/middleware"
)

// validate is shared across handlers. Field names in error responses use
// the json tag, matching what the client actually sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("", "Request body must be valid JSON"))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = validationMessage(fe)
			}
			handler.FieldErrorResponse(w, r, fields)
			return false
		}
		handler.InternalErrorResponse(w, r, err)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	default:
		return "Invalid value"
	}
}

// requestIdentity fetches the identity resolved by the middleware chain.
// A missing identity means the route was registered without WithIdentity.
func requestIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return domain.Identity{}, false
	}
	return id, true
}
