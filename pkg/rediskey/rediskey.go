package rediskey

import "fmt"

// Key namespaces (shared convention for every redis consumer).
const (
	RateLimitPrefix = "ratelimit"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildRateLimitKey returns "ratelimit:{keyID}:{windowStart}".
func BuildRateLimitKey(keyID string, windowStart int64) string {
	return fmt.Sprintf("%s:%s:%d", RateLimitPrefix, keyID, windowStart)
}
