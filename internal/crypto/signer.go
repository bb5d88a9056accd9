package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// ErrBadSignature is returned when a receipt signature does not recover to
// the address recorded on the receipt.
var ErrBadSignature = errors.New("crypto: receipt signature mismatch")

// ReceiptSigner signs draw receipts with a secp256k1 key. Signatures use the
// personal-message prefix so any Ethereum wallet tool can verify them.
type ReceiptSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewReceiptSigner creates a ReceiptSigner from a hex-encoded private key
// (with or without 0x prefix).
func NewReceiptSigner(privateKeyHex string) (*ReceiptSigner, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &ReceiptSigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address receipts are signed by.
func (s *ReceiptSigner) Address() common.Address {
	return s.address
}

// Sign returns a copy of r with Signer and Signature set.
func (s *ReceiptSigner) Sign(r domain.DrawReceipt) (domain.DrawReceipt, error) {
	r.Signer = s.address.Hex()
	r.Signature = ""

	sig, err := ethcrypto.Sign(messageHash(receiptMessage(r)), s.privateKey)
	if err != nil {
		return domain.DrawReceipt{}, fmt.Errorf("crypto/signer: sign receipt %s: %w", r.CompetitionID, err)
	}
	// go-ethereum returns v in {0,1}; wallets expect {27,28}.
	sig[64] += 27
	r.Signature = "0x" + hex.EncodeToString(sig)
	return r, nil
}

// VerifyReceipt checks that r carries a valid signature by r.Signer.
func VerifyReceipt(r domain.DrawReceipt) error {
	if r.Signer == "" || r.Signature == "" {
		return fmt.Errorf("crypto/signer: receipt %s is unsigned: %w", r.CompetitionID, domain.ErrInvalidArgument)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(r.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		return fmt.Errorf("crypto/signer: malformed signature on %s: %w", r.CompetitionID, ErrBadSignature)
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	unsigned := r
	unsigned.Signature = ""
	pub, err := ethcrypto.SigToPub(messageHash(receiptMessage(unsigned)), sig)
	if err != nil {
		return fmt.Errorf("crypto/signer: recover %s: %w", r.CompetitionID, ErrBadSignature)
	}
	if ethcrypto.PubkeyToAddress(*pub) != common.HexToAddress(r.Signer) {
		return fmt.Errorf("crypto/signer: receipt %s: %w", r.CompetitionID, ErrBadSignature)
	}
	return nil
}

// receiptMessage is the canonical text that gets signed. Field order is
// fixed; adding a field means a new version prefix.
func receiptMessage(r domain.DrawReceipt) string {
	fields := []string{
		"prizedraw-receipt-v1",
		r.CompetitionID,
		r.Seed,
		r.SeedCommitment,
		r.BlockHash,
		strconv.FormatUint(r.BlockNumber, 10),
		r.EntropySource,
		strconv.FormatBool(r.Degraded),
		strconv.Itoa(r.TicketsSold),
		strconv.Itoa(r.WinningTicket),
		r.WinnerUserID,
		r.CompletedAt.UTC().Format(time.RFC3339Nano),
		r.Signer,
	}
	return strings.Join(fields, "\n")
}

// messageHash computes keccak256("\x19Ethereum Signed Message:\n" || len || msg).
func messageHash(msg string) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return ethcrypto.Keccak256([]byte(prefix), []byte(msg))
}

var _ domain.ReceiptSigner = (*ReceiptSigner)(nil)
