package redis

import "time"

// expiryPrecision is the resolution of PX and PEXPIRE.
const expiryPrecision = time.Millisecond

// roundUpTTL lifts ttl to the next whole millisecond. go-redis truncates, so a
// token-bound entry could otherwise expire before the token it tracks.
func roundUpTTL(ttl time.Duration) time.Duration {
	if rem := ttl % expiryPrecision; rem > 0 {
		ttl += expiryPrecision - rem
	}
	return ttl
}
