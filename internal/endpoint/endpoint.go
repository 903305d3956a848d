// Package endpoint derives the canonical identity of a DoH provider URL.
//
// Two provider URLs that differ only by a trailing slash, a missing scheme,
// or the letter case of the scheme and host refer to the same endpoint and
// share the same Key.
package endpoint

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// DefaultScheme is applied to URLs given without a scheme.
const DefaultScheme = "https"

// Key is a normalized provider URL: scheme://host[:port]path with no
// trailing slash, query, or fragment.
type Key string

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }

// IsZero reports whether k is empty.
func (k Key) IsZero() bool { return k == "" }

// Normalize returns the endpoint key for raw. It is idempotent:
// Normalize(string(Normalize(x))) == Normalize(x).
func Normalize(raw string) Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = DefaultScheme + "://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return Key(strings.TrimRight(trimmed, "/"))
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return Key(strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path)
}

// Equal reports whether a and b normalize to the same key.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Host returns the bare hostname of the endpoint, suitable for ICMP probing.
// It returns "" when the key has no parseable host.
func Host(k Key) string {
	u, err := url.Parse(string(k))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ID returns a short stable identifier for k: the lowercase hex of its
// 64-bit xxh3 digest, zero-padded to 16 characters.
func ID(k Key) string {
	s := strconv.FormatUint(xxh3.HashString(string(k)), 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}

// IsID reports whether s has the shape of an endpoint ID.
func IsID(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
