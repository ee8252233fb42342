// Package xid generates prefixed, time-ordered identifiers for catalog
// entities and audit rows (e.g. "prd-...", "aud-..."). Sales and the register
// use UUIDs instead; those ids cross system boundaries.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form "<prefix>-<unix-nanos>-<random-hex>".
// If crypto/rand fails the random suffix is dropped rather than erroring;
// the timestamp alone is unique enough for a single-process stand.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
