package logger

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// Mask replaces a registered secret wherever it appears in log output.
const Mask = "***"

// minSecretLen keeps short values (empty strings, "1") from masking half the log.
const minSecretLen = 6

var (
	secretsMu sync.RWMutex
	secrets   []string
)

// RegisterSecret adds a value (API key, access token) that must never reach
// a log sink. Values shorter than six characters are ignored.
func RegisterSecret(secret string) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLen {
		return
	}

	secretsMu.Lock()
	defer secretsMu.Unlock()
	for _, s := range secrets {
		if s == secret {
			return
		}
	}
	secrets = append(secrets, secret)
	// Longest first so a secret containing another is masked whole
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
}

// ResetSecrets clears registered secrets (useful for testing)
func ResetSecrets() {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	secrets = nil
}

// Redact masks every registered secret in s.
func Redact(s string) string {
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	for _, secret := range secrets {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, Mask)
		}
	}
	return s
}

// redactingCore masks registered secrets in messages and string-ish fields
// before they reach the wrapped core's encoder.
type redactingCore struct {
	zapcore.Core
}

func newRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = Redact(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = Redact(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: Redact(err.Error())}
			}
		case zapcore.StringerType:
			if s, ok := f.Interface.(interface{ String() string }); ok {
				f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: Redact(s.String())}
			}
		}
		out[i] = f
	}
	return out
}
