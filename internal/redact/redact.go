// Package redact masks key material before it reaches audit logs.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	neverPersistKey = "never_persist"
	redactedSecret  = "[REDACTED_SECRET]"
)

// sensitiveKeys are metadata keys whose values are always masked.
var sensitiveKeys = map[string]struct{}{
	"key":       {},
	"fixed_key": {},
	"plaintext": {},
}

var (
	kvSecretRe = regexp.MustCompile(`(?i)((?:fixed[-_ ]?)?key\s*[:=]\s*)(['\"]?)([^\s'\"]{4,})(['\"]?)`)
	longHexRe  = regexp.MustCompile(`\b(?:0x)?[0-9A-Fa-f]{32,}\b`)
)

// String masks key assignments and long hex runs in free text.
func String(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	masked := kvSecretRe.ReplaceAllString(in, `$1$2[REDACTED_SECRET]$4`)
	return longHexRe.ReplaceAllString(masked, redactedSecret)
}

// Interface redacts recognised sensitive values within nested structures.
func Interface(value any) any {
	switch v := value.(type) {
	case string:
		return String(v)
	case []byte:
		return redactedSecret
	case fmt.Stringer:
		return String(v.String())
	case []string:
		return Slice(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Interface(elem)
		}
		return out
	case map[string]any:
		return Map(v)
	default:
		return value
	}
}

// Map redacts sensitive values within a map of arbitrary values. Keys listed
// under never_persist are masked along with the built-in sensitive keys.
func Map(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	extra := make(map[string]struct{})
	for k, v := range in {
		if strings.EqualFold(k, neverPersistKey) {
			for _, name := range collectNeverPersist(v) {
				extra[name] = struct{}{}
			}
			continue
		}
		out[k] = v
	}
	for k, v := range out {
		if isSensitive(k) {
			out[k] = redactedSecret
			continue
		}
		if _, ok := extra[k]; ok {
			out[k] = redactedSecret
			continue
		}
		out[k] = Interface(v)
	}
	return out
}

// Slice redacts sensitive values within a slice of strings.
func Slice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = String(v)
	}
	return out
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

func collectNeverPersist(value any) []string {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, elem := range v {
			raw = append(raw, fmt.Sprint(elem))
		}
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
