package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
)

// Minimal internal validator to avoid external dependency. Supports:
// - required
// - phone254 (Kenyan MSISDN: 254 followed by 9 digits)
// - emailok (basic shape check, not full RFC)
// - nameok (letters, numbers, space, hyphen, apostrophe, underscore, 1-150 chars)
// - pwdmin (min length 6)
// - eqfield=OtherField (field equals another field)

var (
	rePhone254 = regexp.MustCompile(`^254[0-9]{9}$`)
	reEmailOK  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	reNameOK   = regexp.MustCompile(`^[A-Za-z0-9 \-'_]{1,150}$`)
)

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		parts := strings.Split(tag, ",")
		fv := v.Field(i)
		var sval string
		if fv.IsValid() && fv.Kind() == reflect.String {
			sval = fv.String()
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "required" {
				if !fv.IsValid() || fv.IsZero() {
					return errors.New(field.Name + " is required")
				}
			} else if p == "phone254" {
				if sval != "" && !rePhone254.MatchString(sval) {
					return errors.New(field.Name + " must be a phone number in 2547XXXXXXXX format")
				}
			} else if p == "emailok" {
				if sval != "" && !reEmailOK.MatchString(sval) {
					return errors.New(field.Name + " must be a valid email address")
				}
			} else if p == "nameok" {
				if sval != "" && !reNameOK.MatchString(sval) {
					return errors.New(field.Name + " contains invalid characters")
				}
			} else if p == "pwdmin" {
				if len(sval) < 6 {
					return errors.New(field.Name + " must be at least 6 characters")
				}
			} else if strings.HasPrefix(p, "eqfield=") {
				other := strings.TrimPrefix(p, "eqfield=")
				of := v.FieldByName(other)
				if of.IsValid() && of.Kind() == reflect.String {
					if sval != of.String() {
						return errors.New(field.Name + " must equal " + other)
					}
				}
			}
		}
	}
	return nil
}
