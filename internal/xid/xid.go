package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const receiptLayout = "20060102-150405"

// Receipt builds a receipt id of the form YYYYMMDD-HHMMSS-<seq>-<token>. Ids
// sort by issue time; seq and the random token keep ids issued within the
// same second distinct.
func Receipt(at time.Time, seq int64) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%06d-%s", at.Format(receiptLayout), seq, token)
}

// ValidReceipt reports whether id is safe to use as a file name.
func ValidReceipt(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
