package settings

import (
	"strconv"
	"strings"
	"unicode"
)

// Kind is a rough classification of a setting used for display.
type Kind string

const (
	KindSecret     Kind = "secret"
	KindConnection Kind = "connection"
	KindGenerated  Kind = "generated"
	KindURL        Kind = "url"
	KindBoolean    Kind = "boolean"
	KindNumeric    Kind = "numeric"
	KindConfig     Kind = "config"
)

var secretPatterns = []string{
	"secret", "key", "token", "password", "pass", "pwd",
	"auth", "credential", "cred", "private", "cert",
	"client_id", "oauth", "bearer", "jwt", "signature", "signing",
	"sas", "webhook", "vault",
}

var connectionPatterns = []string{
	"connection", "connstr", "database_url", "db_url", "dsn",
	"azurewebjobsstorage", "storage",
}

// valueMarkers appear inside connection strings and SAS URLs.
var valueMarkers = []string{
	"accountkey=", "sharedaccesskey=", "password=", "sig=",
}

// Classify returns the kind of a setting and whether its value must be
// masked when shown.
func Classify(name, value string) (Kind, bool) {
	nameLower := strings.ToLower(name)
	valueLower := strings.ToLower(value)

	for _, marker := range valueMarkers {
		if strings.Contains(valueLower, marker) {
			return KindConnection, true
		}
	}
	for _, pattern := range connectionPatterns {
		if strings.Contains(nameLower, pattern) {
			return KindConnection, true
		}
	}
	if looksGenerated(value) {
		return KindGenerated, true
	}
	for _, pattern := range secretPatterns {
		if strings.Contains(nameLower, pattern) {
			return KindSecret, true
		}
	}

	if strings.HasPrefix(valueLower, "http") || strings.Contains(nameLower, "url") {
		return KindURL, false
	}
	if valueLower == "true" || valueLower == "false" || strings.Contains(nameLower, "enable") {
		return KindBoolean, false
	}
	if _, err := strconv.Atoi(value); err == nil {
		return KindNumeric, false
	}
	return KindConfig, false
}

// Display returns value, or a mask when the setting is sensitive.
func Display(name, value string) string {
	if _, sensitive := Classify(name, value); sensitive && value != "" {
		return "****"
	}
	return value
}

func looksGenerated(value string) bool {
	if len(value) < 16 {
		return false
	}
	// UUID
	if len(value) == 36 && strings.Count(value, "-") == 4 {
		return true
	}
	// JWT
	if strings.Count(value, ".") == 2 && len(value) > 50 {
		return true
	}
	return len(value) >= 20 && isURLSafeBase64(value) && hasHighEntropy(value) && containsMixedCase(value)
}

func isURLSafeBase64(s string) bool {
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '=' || r == '+' || r == '/') {
			return false
		}
	}
	return true
}

func hasHighEntropy(value string) bool {
	seen := make(map[rune]bool)
	for _, r := range value {
		seen[r] = true
	}
	return float64(len(seen))/float64(len(value)) > 0.5
}

func containsMixedCase(value string) bool {
	var upper, lower bool
	for _, r := range value {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	return upper && lower
}
