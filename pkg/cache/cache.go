package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is a string key-value store with expiring keys.
// Strings and byte slices are stored as is; other values as JSON.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get returns ErrCacheMiss for absent keys.
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// MSet writes every value or none.
	MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error
	// MGet omits absent keys from the result.
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	// Keys lists keys matching a glob pattern, without the store prefix.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// encodeValue stores strings and bytes as is and everything else as JSON.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

// decodeValue fills dest from raw; *string and *[]byte receive raw unchanged.
func decodeValue(raw []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(raw)
		return nil
	case *[]byte:
		*d = append([]byte(nil), raw...)
		return nil
	default:
		return json.Unmarshal(raw, dest)
	}
}
