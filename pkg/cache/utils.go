package cache

import "strings"

// GenerateKey joins a prefix and its parts with ':', e.g. "model:AAPL:meta".
func GenerateKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}

// TrimPrefix removes "<prefix>:" from key when present.
func TrimPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+":")
}
