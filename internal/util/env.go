package util

import "strings"

// CleanEnvValue strips whitespace, surrounding quotes and a trailing
// inline comment from a value copied out of a .env file
func CleanEnvValue(v string) string {
	v = strings.TrimSpace(v)

	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}

	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}

// MaskSecret hides all but the last four characters of a secret
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
