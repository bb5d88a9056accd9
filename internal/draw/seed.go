package draw

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SeedBytes is the size of a locally generated draw seed.
const SeedBytes = 32

// NewSeed returns a fresh hex-encoded 256-bit seed from the OS CSPRNG.
func NewSeed() (string, error) {
	buf := make([]byte, SeedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("draw: generate seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Commitment returns the 0x-prefixed Keccak-256 of the seed. It is published
// in the draw receipt so a verifier can check the disclosed seed was not
// swapped after the fact.
func Commitment(seed string) string {
	return ethcrypto.Keccak256Hash([]byte(seed)).Hex()
}

// Verify recomputes the winning ticket for a receipt-style tuple and reports
// whether it matches the recorded one.
func Verify(seed, blockHash string, totalTickets, winningTicket int) (bool, error) {
	n, err := SelectWinner(seed, blockHash, totalTickets)
	if err != nil {
		return false, err
	}
	return n == winningTicket, nil
}
