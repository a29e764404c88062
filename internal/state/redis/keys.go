package redis

import "strings"

// DefaultPrefix namespaces every state document in the Redis keyspace.
const DefaultPrefix = "uptimer:state:"

// DocumentKey returns the Redis key of a state document.
func DocumentKey(prefix, key string) string {
	return prefix + key
}

// DocumentName strips the prefix from a Redis key.
func DocumentName(prefix, redisKey string) (string, bool) {
	if !strings.HasPrefix(redisKey, prefix) || len(redisKey) == len(prefix) {
		return "", false
	}
	return redisKey[len(prefix):], true
}
