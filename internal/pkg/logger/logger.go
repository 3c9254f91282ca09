// Package logger emits structured JSON log lines to stderr. Values in
// email-bearing fields are redacted before they are written; recipient
// addresses must never land in plain text logs.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

var (
	mu       sync.Mutex
	minLevel = INFO
	redact   = true
)

// SetLevel sets the minimum level that gets written.
func SetLevel(l Level) { minLevel = l }

// SetRedactPII toggles email redaction. Leave it on outside local debugging.
func SetRedactPII(on bool) { redact = on }

// Debug writes a DEBUG line with alternating key/value fields.
func Debug(msg string, fields ...interface{}) { write(DEBUG, msg, fields) }

// Info writes an INFO line with alternating key/value fields.
func Info(msg string, fields ...interface{}) { write(INFO, msg, fields) }

// Warn writes a WARN line with alternating key/value fields.
func Warn(msg string, fields ...interface{}) { write(WARN, msg, fields) }

// Error writes an ERROR line with alternating key/value fields.
func Error(msg string, fields ...interface{}) { write(ERROR, msg, fields) }

func write(level Level, msg string, fields []interface{}) {
	if level < minLevel {
		return
	}

	line := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		k := fmt.Sprintf("%v", fields[i])
		v := fmt.Sprintf("%v", fields[i+1])
		if redact {
			v = redactField(k, v)
		}
		line[k] = v
	}

	out, _ := json.Marshal(line)
	mu.Lock()
	fmt.Fprintln(os.Stderr, string(out))
	mu.Unlock()
}
