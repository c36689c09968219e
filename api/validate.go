/*
validate.go - Request decoding and validation

PURPOSE:
  One place to decode a JSON request body and run struct-tag validation
  before a handler touches the value. Validation messages use the JSON
  field names so clients can map errors back to their payload.
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(useJSONTagNames)
	return v
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// BindAndValidate decodes the body into dst and validates it. Returns false
// after writing the error response, so handlers can bail with one line.
func BindAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			writeError(w, http.StatusBadRequest, "Validation failed", fmt.Errorf("%s", formatFieldErrors(verrs)))
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func formatFieldErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
