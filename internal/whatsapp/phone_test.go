package whatsapp

import "testing"

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+2348012345678", "whatsapp:+2348012345678"},
		{"whatsapp:+2348012345678", "whatsapp:+2348012345678"},
		{"0801 234 5678", "whatsapp:+2348012345678"},
		{"8012345678", "whatsapp:+2348012345678"},
		{"(234) 801-2345678", "whatsapp:+2348012345678"},
		{"14155238886", "whatsapp:+14155238886"},
		{" whatsapp:+14155238886 ", "whatsapp:+14155238886"},
	}

	for _, tt := range tests {
		if got := FormatPhoneNumber(tt.in); got != tt.want {
			t.Errorf("FormatPhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"whatsapp:+2348012345678", "+2348012345678"},
		{"+2348012345678", "+2348012345678"},
		{" whatsapp:+14155238886 ", "+14155238886"},
	}

	for _, tt := range tests {
		if got := NormalizePhoneNumber(tt.in); got != tt.want {
			t.Errorf("NormalizePhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
