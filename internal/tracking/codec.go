// Package tracking rewrites outgoing HTML for engagement tracking and
// ingests the resulting open/click events. Outbound preparation embeds a
// signed pixel URL and rewrites links through the click endpoint; inbound
// handlers decode those URLs, acknowledge immediately, and hand the ledger
// write to the event queue.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Codec builds and verifies signed tracking URLs. Payloads are
// base64url-encoded pipe-joined fields with a truncated HMAC-SHA256
// signature, so tracking requests can be attributed without a lookup and
// tampered parameters are rejected.
type Codec struct {
	baseURL    string
	signingKey []byte
}

// NewCodec returns a Codec. baseURL is the public root of the tracking
// service, without a trailing slash.
func NewCodec(baseURL, signingKey string) *Codec {
	return &Codec{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
	}
}

func (c *Codec) sign(data string) string {
	mac := hmac.New(sha256.New, c.signingKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

func (c *Codec) encode(fields ...string) (data, sig string) {
	payload := strings.Join(fields, "|")
	data = base64.URLEncoding.EncodeToString([]byte(payload))
	return data, c.sign(data)
}

// Decode verifies the signature and splits the payload back into fields.
func (c *Codec) Decode(data, sig string) ([]string, error) {
	if !hmac.Equal([]byte(c.sign(data)), []byte(sig)) {
		return nil, fmt.Errorf("tracking: bad signature")
	}
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("tracking: bad payload: %w", err)
	}
	return strings.Split(string(raw), "|"), nil
}

// OpenURL returns the signed pixel URL for a recipient.
func (c *Codec) OpenURL(campaignID, recipientID string) string {
	data, sig := c.encode(campaignID, recipientID)
	return fmt.Sprintf("%s/track/open?d=%s&s=%s", c.baseURL, data, sig)
}

// ClickURL returns the signed redirect URL wrapping target. The target is
// query-escaped inside the payload so pipe characters in URLs survive the
// round trip; handlers unescape after Decode.
func (c *Codec) ClickURL(campaignID, recipientID, target string) string {
	data, sig := c.encode(campaignID, recipientID, url.QueryEscape(target))
	return fmt.Sprintf("%s/track/click?d=%s&s=%s", c.baseURL, data, sig)
}

// InjectTracking rewrites every link through the click endpoint and embeds
// the open pixel. On any preparation problem it fails open and returns the
// input unchanged; a lost tracking pixel must never block a send.
func (c *Codec) InjectTracking(html, campaignID, recipientID string) string {
	if campaignID == "" || recipientID == "" {
		return html
	}
	out := c.rewriteLinks(html, campaignID, recipientID)

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" border="0" alt="" style="display:block" />`,
		c.OpenURL(campaignID, recipientID))

	if idx := strings.LastIndex(strings.ToLower(out), "</body>"); idx >= 0 {
		return out[:idx] + pixel + out[idx:]
	}
	return out + pixel
}

// rewriteLinks replaces every href target with a click-tracking URL,
// skipping anchors, mailto links, and URLs already pointing at the
// tracking service.
func (c *Codec) rewriteLinks(html, campaignID, recipientID string) string {
	var b strings.Builder
	b.Grow(len(html) + len(html)/4)

	rest := html
	for {
		idx := strings.Index(rest, `href="`)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		start := idx + len(`href="`)
		end := strings.Index(rest[start:], `"`)
		if end < 0 {
			b.WriteString(rest)
			break
		}
		target := rest[start : start+end]

		b.WriteString(rest[:start])
		if skipRewrite(target) {
			b.WriteString(target)
		} else {
			b.WriteString(c.ClickURL(campaignID, recipientID, target))
		}
		rest = rest[start+end:]
	}
	return b.String()
}

func skipRewrite(target string) bool {
	return target == "" ||
		strings.HasPrefix(target, "#") ||
		strings.HasPrefix(strings.ToLower(target), "mailto:") ||
		strings.Contains(target, "/track/")
}

// safeRedirectTarget returns target if it parses as an absolute http(s)
// URL, otherwise the empty string.
func safeRedirectTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return target
}
