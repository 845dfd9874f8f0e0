package whatsapp

import "strings"

// FormatPhoneNumber formats a phone number for the Twilio WhatsApp API
// (whatsapp:+234...). Accepts input with or without the whatsapp: prefix.
func FormatPhoneNumber(phone string) string {
	phone = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:"))

	for _, cut := range []string{" ", "-", "(", ")"} {
		phone = strings.ReplaceAll(phone, cut, "")
	}

	if !strings.HasPrefix(phone, "+") {
		// Assume a Nigerian number when no country code is given.
		switch {
		case strings.HasPrefix(phone, "0"):
			phone = "+234" + phone[1:]
		case len(phone) == 10:
			phone = "+234" + phone
		default:
			phone = "+" + phone
		}
	}

	return "whatsapp:" + phone
}

// ParsePhoneNumber extracts the clean +... number from the WhatsApp format.
func ParsePhoneNumber(whatsappPhone string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(whatsappPhone), "whatsapp:"))
}

// NormalizePhoneNumber normalizes a phone number for use as a user
// identifier (whatsapp: prefix removed, +... kept).
func NormalizePhoneNumber(phone string) string {
	return ParsePhoneNumber(phone)
}
