package tracking

import (
	"net/url"
	"strings"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	open := c.OpenURL("camp-1", "rec-1")
	if !strings.HasPrefix(open, "https://track.example.com/track/open?d=") {
		t.Fatalf("unexpected open URL: %s", open)
	}

	u, err := url.Parse(open)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()

	parts, err := c.Decode(q.Get("d"), q.Get("s"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(parts) != 2 || parts[0] != "camp-1" || parts[1] != "rec-1" {
		t.Errorf("decoded %v, want [camp-1 rec-1]", parts)
	}
}

func TestCodecClickURLPreservesTarget(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	// The target carries query params and a pipe, both of which must
	// survive the payload encoding
	target := "https://shop.example.com/sale?id=1|2&ref=email"
	click := c.ClickURL("camp-1", "rec-1", target)

	u, _ := url.Parse(click)
	q := u.Query()
	parts, err := c.Decode(q.Get("d"), q.Get("s"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("got %d fields, want 3", len(parts))
	}
	raw, err := url.QueryUnescape(parts[2])
	if err != nil {
		t.Fatal(err)
	}
	if raw != target {
		t.Errorf("target = %q, want %q", raw, target)
	}
}

func TestCodecRejectsTampering(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	u, _ := url.Parse(c.OpenURL("camp-1", "rec-1"))
	q := u.Query()

	// wrong signature
	if _, err := c.Decode(q.Get("d"), "0000000000000000"); err == nil {
		t.Error("Decode accepted a forged signature")
	}

	// payload signed with a different key
	other := NewCodec("https://track.example.com", "other-key")
	if _, err := other.Decode(q.Get("d"), q.Get("s")); err == nil {
		t.Error("Decode accepted a signature from another key")
	}

	// valid signature, mangled payload
	if _, err := c.Decode(q.Get("d")+"x", q.Get("s")); err == nil {
		t.Error("Decode accepted a modified payload")
	}
}

func TestInjectTrackingPixel(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	html := `<html><body><p>Hello</p></body></html>`
	out := c.InjectTracking(html, "camp-1", "rec-1")

	if !strings.Contains(out, "/track/open?d=") {
		t.Error("pixel URL missing from output")
	}
	// pixel lands before the closing body tag
	pixelIdx := strings.Index(out, "<img")
	bodyIdx := strings.Index(out, "</body>")
	if pixelIdx < 0 || bodyIdx < 0 || pixelIdx > bodyIdx {
		t.Errorf("pixel not placed before </body>: %s", out)
	}
}

func TestInjectTrackingNoBodyTag(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	out := c.InjectTracking(`<p>plain fragment</p>`, "camp-1", "rec-1")
	if !strings.HasSuffix(out, "/>") || !strings.Contains(out, "/track/open?d=") {
		t.Errorf("pixel not appended: %s", out)
	}
}

func TestInjectTrackingMissingIDs(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	html := `<body><a href="https://example.com">x</a></body>`
	if got := c.InjectTracking(html, "", "rec-1"); got != html {
		t.Error("expected unchanged HTML without a campaign id")
	}
	if got := c.InjectTracking(html, "camp-1", ""); got != html {
		t.Error("expected unchanged HTML without a recipient id")
	}
}

func TestRewriteLinks(t *testing.T) {
	c := NewCodec("https://track.example.com", "secret-key")

	html := `<body>` +
		`<a href="https://shop.example.com/a">buy</a>` +
		`<a href="#section">jump</a>` +
		`<a href="mailto:help@example.com">mail</a>` +
		`<a href="https://track.example.com/track/click?d=x&s=y">already</a>` +
		`</body>`
	out := c.InjectTracking(html, "camp-1", "rec-1")

	if strings.Contains(out, `href="https://shop.example.com/a"`) {
		t.Error("plain link was not rewritten")
	}
	if !strings.Contains(out, `href="#section"`) {
		t.Error("anchor link was rewritten")
	}
	if !strings.Contains(out, `href="mailto:help@example.com"`) {
		t.Error("mailto link was rewritten")
	}
	if !strings.Contains(out, `href="https://track.example.com/track/click?d=x&s=y"`) {
		t.Error("tracking link was double-wrapped")
	}
}

func TestSafeRedirectTarget(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"https://example.com/page", "https://example.com/page"},
		{"http://example.com", "http://example.com"},
		{"javascript:alert(1)", ""},
		{"ftp://example.com/file", ""},
		{"/relative/path", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := safeRedirectTarget(tt.target); got != tt.want {
			t.Errorf("safeRedirectTarget(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}
