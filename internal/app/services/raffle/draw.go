package raffle

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// winningTicket derives the winning ticket number for one prize slot. The
// value is a pure function of the raffle id and the slot index: a SHA3-256
// digest reduced modulo the prize count. Repeated calls always return the
// same number.
func winningTicket(raffleID string, prizeIndex, prizeCount int) uint64 {
	digest := sha3.Sum256([]byte(fmt.Sprintf("%s:%d", raffleID, prizeIndex)))
	return binary.BigEndian.Uint64(digest[:8]) % uint64(prizeCount)
}
