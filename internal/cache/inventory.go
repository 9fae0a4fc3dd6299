package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix = "user:%d"
)

const (
	UserTTL = 5 * time.Minute
)

// ReinvalidateDelay is how long after a write the user key is deleted a second time.
// It must exceed the slowest directory read that can race the write.
var ReinvalidateDelay = 500 * time.Millisecond

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// Invalidate deletes key; a nil client is a no-op.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateUserAfterWrite deletes the user's cache entry now and again after
// ReinvalidateDelay. A reader that loaded the old row before the write and stores it
// after the first delete would otherwise serve the stale token for up to UserTTL.
func InvalidateUserAfterWrite(ctx context.Context, userID uint) {
	InvalidateUser(ctx, userID)
	rdb := client
	if rdb == nil {
		return
	}
	key := UserKey(userID)
	ctx = context.WithoutCancel(ctx)
	time.AfterFunc(ReinvalidateDelay, func() {
		rdb.Del(ctx, key)
	})
}
