package redisx

import "time"

const (
	// otp:cooldown:<phone>
	KeyOTPCooldown = "otp:cooldown:%s"

	// idem:order:create:<customer id>:<Idempotency-Key>
	KeyIdemOrderCreate = "idem:order:create:%s:%s"
)

const (
	// TTLIdempotency is how long a completed key replays its order.
	TTLIdempotency = 24 * time.Hour

	// TTLIdempotencyPending bounds a claim whose request never finished.
	TTLIdempotencyPending = time.Minute
)

// idemPending marks a claimed key whose order is still being placed.
const idemPending = "pending"
