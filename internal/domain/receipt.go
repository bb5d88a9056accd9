package domain

import "time"

// DrawReceipt is the public audit record of one draw. Anyone holding it can
// recompute the winning ticket from Seed, BlockHash and TicketsSold.
type DrawReceipt struct {
	CompetitionID  string    `json:"competitionId"`
	Seed           string    `json:"seed"`
	SeedCommitment string    `json:"seedCommitment"`
	BlockHash      string    `json:"blockHash"`
	BlockNumber    uint64    `json:"blockNumber,omitempty"`
	EntropySource  string    `json:"entropySource"`
	Degraded       bool      `json:"degraded"`
	TicketsSold    int       `json:"ticketsSold"`
	WinningTicket  int       `json:"winningTicket"`
	WinnerUserID   string    `json:"winnerUserId"`
	CompletedAt    time.Time `json:"completedAt"`

	// Signer is the address of the key that signed the receipt and
	// Signature its 65-byte hex signature. Both are empty when signing is
	// not configured.
	Signer    string `json:"signer,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ReceiptSigner attaches a signature to a receipt.
type ReceiptSigner interface {
	Sign(r DrawReceipt) (DrawReceipt, error)
}
