// Package provider keeps the file-backed registry of DoH providers the
// operator can switch between.
package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Resinat/dohswitch/internal/endpoint"
)

// ErrProtected is returned when deleting a built-in provider.
var ErrProtected = errors.New("default providers cannot be deleted")

// ErrInvalid wraps validation failures of a provider entry.
var ErrInvalid = errors.New("invalid provider")

// Provider is one persisted registry entry.
type Provider struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Key returns the normalized endpoint key of p.
func (p Provider) Key() endpoint.Key { return endpoint.Normalize(p.URL) }

// Entry is a Provider as presented to callers.
type Entry struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	Key       endpoint.Key `json:"base_url"`
	IsDefault bool         `json:"is_default"`
}

// Defaults seed a new registry and cannot be deleted.
var Defaults = []Provider{
	{Name: "Cloudflare", URL: "https://cloudflare-dns.com/dns-query"},
	{Name: "Google", URL: "https://dns.google/dns-query"},
	{Name: "Quad9", URL: "https://dns.quad9.net/dns-query"},
	{Name: "NextDNS", URL: "https://dns.nextdns.io/dns-query"},
	{Name: "OpenDNS", URL: "https://opendns.com/dns-query"},
	{Name: "AdGuard", URL: "https://dns.adguard.com/dns-query"},
	{Name: "SecureDNS", URL: "https://doh.securedns.eu/dns-query"},
}

var defaultKeys = func() map[endpoint.Key]struct{} {
	m := make(map[endpoint.Key]struct{}, len(Defaults))
	for _, p := range Defaults {
		m[p.Key()] = struct{}{}
	}
	return m
}()

// IsDefault reports whether key belongs to a built-in provider.
func IsDefault(key endpoint.Key) bool {
	_, ok := defaultKeys[key]
	return ok
}

func entryOf(p Provider) Entry {
	key := p.Key()
	return Entry{
		ID:        endpoint.ID(key),
		Name:      p.Name,
		URL:       p.URL,
		Key:       key,
		IsDefault: IsDefault(key),
	}
}

// cleanURL trims raw, defaults the scheme to https and checks that the
// result is an absolute http(s) URL with a host.
func cleanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.Join(ErrInvalid, errors.New("url is required"))
	}
	if !strings.Contains(raw, "://") {
		raw = endpoint.DefaultScheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Join(ErrInvalid, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" {
		return "", errors.Join(ErrInvalid, errors.New("url scheme must be http or https"))
	}
	if u.Hostname() == "" {
		return "", errors.Join(ErrInvalid, errors.New("url has no host"))
	}
	return raw, nil
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.Join(ErrInvalid, errors.New("name is required"))
	}
	return name, nil
}

func validate(list []Provider) error {
	seen := make(map[endpoint.Key]struct{}, len(list))
	for _, p := range list {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.URL) == "" {
			return errors.Join(ErrInvalid, errors.New("entry without name or url"))
		}
		key := p.Key()
		if _, dup := seen[key]; dup {
			return errors.Join(ErrInvalid, fmt.Errorf("duplicate url %s", key))
		}
		seen[key] = struct{}{}
	}
	return nil
}
