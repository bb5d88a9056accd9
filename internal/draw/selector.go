// Package draw implements the verifiable winner selection used to resolve a
// competition. Given the same seed, block hash and ticket count, anyone can
// recompute the winning ticket.
package draw

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// Separator joins the seed and block hash before hashing.
const Separator = ":"

// SelectWinner maps (seed, blockHash, totalTickets) to a ticket number in
// [1, totalTickets]. The leading 32 bits of SHA-256(seed + ":" + blockHash)
// are read big-endian and reduced modulo totalTickets.
func SelectWinner(seed, blockHash string, totalTickets int) (int, error) {
	if totalTickets <= 0 {
		return 0, fmt.Errorf("draw: select winner: total tickets %d: %w", totalTickets, domain.ErrInvalidArgument)
	}
	return pickTicket(Digest(seed, blockHash), totalTickets), nil
}

// Digest returns the leading 32 bits of the draw hash.
func Digest(seed, blockHash string) uint32 {
	sum := sha256.Sum256([]byte(seed + Separator + blockHash))
	return binary.BigEndian.Uint32(sum[:4])
}

// pickTicket reduces a digest value to a 1-based ticket number. Bias is at
// most totalTickets/2^32.
func pickTicket(v uint32, totalTickets int) int {
	return int(uint64(v)%uint64(totalTickets)) + 1
}
