package logger

import "testing"

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jordan@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-address", "***@***"},
		{"", "***@***"},
	}
	for _, tt := range tests {
		if got := MaskEmail(tt.in); got != tt.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactField(t *testing.T) {
	if got := redactField("email", "jordan@example.com"); got != "jo***@example.com" {
		t.Errorf("email field not masked: %q", got)
	}
	if got := redactField("error", "550 rejected for user jordan@example.com"); got != "550 rejected for user jo***@example.com" {
		t.Errorf("embedded address not masked: %q", got)
	}
	if got := redactField("campaign_id", "c-123"); got != "c-123" {
		t.Errorf("plain field changed: %q", got)
	}
}
