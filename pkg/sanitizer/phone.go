package sanitizer

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var reE164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// NormalizePhone returns phone in E.164 form. Numbers without a country
// code are read as local to region. Unparseable or invalid numbers yield "".
func NormalizePhone(phone, region string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return ""
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// IsE164 reports whether phone is already a valid E.164 number.
func IsE164(phone string) bool {
	if !reE164.MatchString(phone) {
		return false
	}
	parsed, err := phonenumbers.Parse(phone, "")
	return err == nil && phonenumbers.IsValidNumber(parsed)
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
