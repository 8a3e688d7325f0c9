package xid

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// SaleID builds a receipt-style id whose lexical order follows creation
// order: a compact local timestamp plus a short random suffix so two sales
// within the same second stay distinct.
func SaleID(at time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return at.Format("20060102150405")
	}
	return at.Format("20060102150405") + "-" + hex.EncodeToString(buf)
}
