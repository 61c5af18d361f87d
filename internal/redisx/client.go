package redisx

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// New returns a client for addr. Callers should Ping before relying on it.
func New(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}
