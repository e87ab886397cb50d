package harness

import (
	"encoding/json"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Args are the arguments of one invocation, as decoded from JSON. The helpers
// below validate a key and write the normalized value back, so Invoke sees
// what Validate accepted.
type Args map[string]any

// RequireString returns the trimmed, non-empty string at key.
func (a Args) RequireString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", Invalid(key, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", Invalid(key, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", Invalid(key, "must not be empty")
	}
	a[key] = s
	return s, nil
}

// NormalizeDomain requires a domain name at key and reduces URLs and mixed-case
// input to the bare lowercase host: "https://WWW.Example.com/path" becomes
// "example.com".
func (a Args) NormalizeDomain(key string) (string, error) {
	s, err := a.RequireString(key)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(s)
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil || u.Host == "" {
			return "", Invalid(key, "invalid domain %q", s)
		}
		host = u.Host
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")

	if !validDomain(host) {
		return "", Invalid(key, "invalid domain %q", s)
	}
	a[key] = host
	return host, nil
}

func validDomain(host string) bool {
	if len(host) > 253 || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if r != '-' && !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r < 0x80 {
				return false
			}
		}
	}
	return true
}

// Int returns the integer at key, or def (stored back) when the key is absent.
// JSON numbers and numeric strings are accepted.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		a[key] = def
		return def, nil
	}

	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, Invalid(key, "must be an integer")
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, Invalid(key, "must be an integer")
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, Invalid(key, "must be an integer")
		}
		n = i
	default:
		return 0, Invalid(key, "must be an integer")
	}
	a[key] = n
	return n, nil
}

// IntInRange is Int with an inclusive bound check.
func (a Args) IntInRange(key string, def, lo, hi int) (int, error) {
	n, err := a.Int(key, def)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, Invalid(key, "must be between %d and %d, got %d", lo, hi, n)
	}
	return n, nil
}

// OneOf returns the string at key, or def when absent, and requires it to be
// one of allowed.
func (a Args) OneOf(key, def string, allowed ...string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		a[key] = def
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", Invalid(key, "must be a string")
	}
	if !slices.Contains(allowed, s) {
		return "", Invalid(key, "must be one of %s, got %q", strings.Join(allowed, ", "), s)
	}
	return s, nil
}

// Params copies the named keys that are present into a new map, ready to be
// sent as API params. With no keys, every argument is copied.
func (a Args) Params(keys ...string) map[string]any {
	out := make(map[string]any, len(a))
	if len(keys) == 0 {
		for k, v := range a {
			out[k] = v
		}
		return out
	}
	for _, k := range keys {
		if v, ok := a[k]; ok {
			out[k] = v
		}
	}
	return out
}
