package util

import (
	"context"
	"fmt"
	"time"

	"github.com/danursasmita/bengkel-ops/config"
)

// Redis cache in front of the unauthenticated ban pre-check. The check is
// hit by login pages before credentials are even attempted, so a short TTL
// cache keeps abusive scans off the database. All helpers are best-effort:
// a nil or failing Redis client degrades to a direct query.

const banCheckTTL = 5 * time.Minute

func banCheckKey(ip string) string {
	return fmt.Sprintf("bancheck:%s", ip)
}

// BanCacheGet returns the cached ban verdict for ip, if any.
func BanCacheGet(ip string) (banned bool, ok bool) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return false, false
	}
	ctx := context.Background()
	val, err := rdb.Get(ctx, banCheckKey(ip)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// BanCacheSet stores the ban verdict for ip with a short TTL.
func BanCacheSet(ip string, banned bool) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return
	}
	val := "0"
	if banned {
		val = "1"
	}
	ctx := context.Background()
	_ = rdb.Set(ctx, banCheckKey(ip), val, banCheckTTL).Err()
}

// BanCacheInvalidate drops the cached verdict for ip. Called after an
// administrator bans or unbans the address so the pre-check does not serve
// a stale answer for the full TTL.
func BanCacheInvalidate(ip string) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return
	}
	ctx := context.Background()
	_ = rdb.Del(ctx, banCheckKey(ip)).Err()
}
