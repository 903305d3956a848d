package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakTokenScoreThreshold = 3

// tokenDictionary holds words an attacker would try first against this service.
var tokenDictionary = []string{"dohswitch", "cloudflared", "doh", "dns"}

// IsWeakToken returns whether token strength is considered weak.
// Empty token is handled by auth mode (disabled), so this function treats it as not weak.
func IsWeakToken(token string) bool {
	if token == "" {
		return false
	}
	result := zxcvbn.PasswordStrength(token, tokenDictionary)
	return result.Score < weakTokenScoreThreshold
}
