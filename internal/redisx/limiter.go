package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownLimiter allows one OTP per phone number per cooldown window.
type CooldownLimiter struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func NewCooldownLimiter(rdb *redis.Client, cooldown time.Duration) *CooldownLimiter {
	return &CooldownLimiter{rdb: rdb, cooldown: cooldown}
}

// Allow reports whether a code may be sent now and starts the cooldown if so.
func (l *CooldownLimiter) Allow(ctx context.Context, phoneNumber string) (bool, error) {
	if l.cooldown <= 0 {
		return true, nil
	}
	key := fmt.Sprintf(KeyOTPCooldown, phoneNumber)
	return l.rdb.SetNX(ctx, key, 1, l.cooldown).Result()
}
