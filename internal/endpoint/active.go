package endpoint

import "fmt"

// UnknownName is reported when the daemon configuration cannot be read or
// carries no upstream.
const UnknownName = "Unknown"

// Active describes the endpoint the forwarding daemon is configured to use.
type Active struct {
	Name    string `json:"provider"`
	FullURL string `json:"provider_url"`
	Key     Key    `json:"base_url"`
}

// Known reports whether an upstream was found. An upstream missing from the
// provider registry is still known; only its name is synthesized.
func (a Active) Known() bool { return !a.Key.IsZero() }

// Unknown returns the Active value for an unreadable configuration.
func Unknown() Active {
	return Active{Name: UnknownName, FullURL: UnknownName}
}

// Unregistered returns the Active value for an upstream that matches no
// registered provider.
func Unregistered(fullURL string) Active {
	return Active{
		Name:    fmt.Sprintf("%s (%s)", UnknownName, fullURL),
		FullURL: fullURL,
		Key:     Normalize(fullURL),
	}
}
