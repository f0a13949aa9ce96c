package dto

import (
	"html"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	upiRe        = regexp.MustCompile(`^[0-9]{6}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("safe_url", validateSafeURL)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateSafeURL accepts only absolute http/https URLs.
func validateSafeURL(fl validator.FieldLevel) bool {
	return IsSafeURL(fl.Field().String())
}

// IsSafeURL reports whether raw is an absolute http(s) URL with a host.
// The empty string passes; use "required" to enforce presence.
func IsSafeURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsUPI reports whether s is a six-digit tracking code.
func IsUPI(s string) bool {
	return upiRe.MatchString(s)
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Fields tagged
// `sanitize:"trim"` are only trimmed. Slices are left alone.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		trimOnly := rt.Field(i).Tag.Get("sanitize") == "trim"
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String(), trimOnly))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String(), trimOnly))
			}
		}
	}
}

func sanitize(s string, trimOnly bool) string {
	s = strings.TrimSpace(s)
	if trimOnly {
		return s
	}
	return html.EscapeString(s)
}
