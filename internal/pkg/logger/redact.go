package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactField masks recipient addresses. Fields whose key mentions email are
// masked outright; other fields are scanned for embedded addresses.
func redactField(key, val string) string {
	if strings.Contains(strings.ToLower(key), "email") {
		return MaskEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, MaskEmail)
}

// MaskEmail keeps the first two characters of the local part and the full
// domain: "jordan@example.com" becomes "jo***@example.com". Local parts of
// two characters or fewer are masked entirely.
func MaskEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return "***@***"
	}
	local, domain := addr[:at], addr[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
