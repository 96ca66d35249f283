package models

// KeyPrefix namespaces rate limit counters in shared stores.
const KeyPrefix = "ratelimit"

// NewUserKey returns the counter key for a user, e.g. "ratelimit:u-42".
// The user id is the final segment and is kept verbatim, so distinct ids
// such as "team:bob" and "team_bob" never share a window.
func NewUserKey(userID string) string {
	return KeyPrefix + ":" + userID
}
