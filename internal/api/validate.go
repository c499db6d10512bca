package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const maxJSONBodyBytes = 10 << 20

// requestValidator validates decoded request bodies and renders failures in
// English, keyed by JSON field name.
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	return &requestValidator{validate: v, trans: trans}
}

// translate maps a validation error to field → message. Errors that are not
// validation errors come back under "detail".
func (rv *requestValidator) translate(err error) map[string]string {
	fields := make(map[string]string)

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(rv.trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// decodeJSON reads a JSON body into dst and validates it. An empty body
// decodes as an empty object so missing fields are reported by validation.
// It writes the error response and returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeErrorDetails(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}

	if err := s.validator.validate.Struct(dst); err != nil {
		fields := s.validator.translate(err)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  firstMessage(fields),
			Fields: fields,
		})
		return false
	}
	return true
}

// firstMessage picks a deterministic headline from the field errors.
func firstMessage(fields map[string]string) string {
	best := ""
	for name := range fields {
		if best == "" || name < best {
			best = name
		}
	}
	if best == "" {
		return "invalid request"
	}
	return fields[best]
}
