package metrics

import "fmt"

const (
	// keyPrefix is the prefix for all publisher metrics keys.
	keyPrefix = "publisher:metrics"
	// KeyRecentPublishes is the Redis key for the recent publishes list.
	KeyRecentPublishes = "publisher:metrics:recent"
	// MaxRecentPublishes is the maximum number of recent publishes kept.
	MaxRecentPublishes = 100
	// counterTTLDays is the TTL in days for outcome counters.
	counterTTLDays = 30
	// recentTTLDays is the TTL in days for the recent publishes list.
	recentTTLDays = 7
	hoursPerDay   = 24
)

// redisKeys builds counter keys consistently.
type redisKeys struct {
	prefix string
}

func newRedisKeys(prefix string) *redisKeys {
	return &redisKeys{prefix: prefix}
}

// Succeeded returns the counter key for successful publishes on a platform.
func (k *redisKeys) Succeeded(platform string) string {
	return fmt.Sprintf("%s:succeeded:%s", k.prefix, platform)
}

// Failed returns the counter key for failed publishes on a platform.
func (k *redisKeys) Failed(platform string) string {
	return fmt.Sprintf("%s:failed:%s", k.prefix, platform)
}

// FailedKind returns the counter key for one failure kind on a platform.
func (k *redisKeys) FailedKind(platform, kind string) string {
	return fmt.Sprintf("%s:failed:%s:%s", k.prefix, platform, kind)
}
