package redisx

import "time"

const (
	// Idempotent checkout: idem:order:create:{user_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Server-held cart: cart:{user_id} -> JSON line items
	KeyCart = "cart:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLCart        = 30 * 24 * time.Hour
)
