package materialize

import "time"

// parseUpdated interprets the "updated" frontmatter field, which may come
// back from YAML decoding as an int64 (an epoch-millisecond number scalar),
// a string (RFC3339), or nil (absent). As documented in the design notes'
// open question, when neither parse succeeds we fall back to the current
// time, matching the original implementation's observed behavior rather
// than guessing at an alternative.
func parseUpdated(raw any) int64 {
	switch v := raw.(type) {
	case nil:
		return nowMillis()
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UnixMilli()
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UnixMilli()
		}
		return nowMillis()
	default:
		return nowMillis()
	}
}

// nowMillisFunc is overridable in tests; production code always calls
// time.Now().
var nowMillisFunc = func() int64 { return time.Now().UnixMilli() }

func nowMillis() int64 { return nowMillisFunc() }

// FormatUpdated renders a millisecond epoch timestamp as RFC3339 with
// millisecond precision and a Z suffix, matching the write-path contract.
func FormatUpdated(millis int64) string {
	t := time.UnixMilli(millis).UTC()
	return t.Format("2006-01-02T15:04:05.000Z")
}
