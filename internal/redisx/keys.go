package redisx

import "time"

const (
	// Idempotency checkout: idem:checkout:{user}:{idempotency_key} -> purchase record id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"

	// Cached active voucher catalog (JSON array)
	KeyActiveVouchers = "vouchers:active"

	// Cached available menu items (JSON array)
	KeyAvailableMenu = "menu:available"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLCatalog     = 5 * time.Minute
)
