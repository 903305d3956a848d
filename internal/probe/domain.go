package probe

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidDomain is returned for names that cannot be queried.
var ErrInvalidDomain = errors.New("invalid domain")

var lookupProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.StrictDomainName(true),
	idna.Transitional(false),
)

// NormalizeDomain converts raw into the lowercase ASCII form used on the
// wire. Unicode names are punycoded; a single trailing dot is accepted.
func NormalizeDomain(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidDomain)
	}
	if _, err := netip.ParseAddr(name); err == nil {
		return "", fmt.Errorf("%w: %q is an IP address", ErrInvalidDomain, raw)
	}
	ascii, err := lookupProfile.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}
	if len(ascii) > 253 {
		return "", fmt.Errorf("%w: %q is longer than 253 bytes", ErrInvalidDomain, raw)
	}
	return strings.ToLower(ascii), nil
}
