package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

const receiptPrefix = "receipts/"

// ReceiptPath returns the object key of a competition's receipt.
func ReceiptPath(competitionID string) string {
	return receiptPrefix + competitionID + ".json"
}

// ReceiptStore implements domain.ReceiptStore on any blob backend.
type ReceiptStore struct {
	w      domain.BlobWriter
	r      domain.BlobReader
	signer domain.ReceiptSigner
}

// ReceiptOption customises a ReceiptStore.
type ReceiptOption func(*ReceiptStore)

// WithSigner signs every receipt before it is written.
func WithSigner(s domain.ReceiptSigner) ReceiptOption {
	return func(rs *ReceiptStore) { rs.signer = s }
}

// NewReceiptStore creates a ReceiptStore.
func NewReceiptStore(w domain.BlobWriter, r domain.BlobReader, opts ...ReceiptOption) *ReceiptStore {
	rs := &ReceiptStore{w: w, r: r}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Save writes the receipt as indented JSON. Receipts are write-once; an
// existing receipt is left untouched.
func (s *ReceiptStore) Save(ctx context.Context, rc domain.DrawReceipt) error {
	if rc.CompetitionID == "" {
		return fmt.Errorf("s3blob: save receipt: %w: empty competition id", domain.ErrInvalidArgument)
	}
	path := ReceiptPath(rc.CompetitionID)
	exists, err := s.r.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: save receipt %s: %w", rc.CompetitionID, err)
	}
	if exists {
		return nil
	}
	if s.signer != nil {
		if rc, err = s.signer.Sign(rc); err != nil {
			return fmt.Errorf("s3blob: sign receipt %s: %w", rc.CompetitionID, err)
		}
	}
	body, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal receipt %s: %w", rc.CompetitionID, err)
	}
	return s.w.Put(ctx, path, bytes.NewReader(body), "application/json")
}

// Load reads a receipt. A missing receipt yields domain.ErrNotFound.
func (s *ReceiptStore) Load(ctx context.Context, competitionID string) (domain.DrawReceipt, error) {
	body, err := s.r.Get(ctx, ReceiptPath(competitionID))
	if err != nil {
		return domain.DrawReceipt{}, err
	}
	defer body.Close()

	var rc domain.DrawReceipt
	if err := json.NewDecoder(body).Decode(&rc); err != nil {
		return domain.DrawReceipt{}, fmt.Errorf("s3blob: decode receipt %s: %w", competitionID, err)
	}
	return rc, nil
}

// List returns the competition IDs that have a stored receipt.
func (s *ReceiptStore) List(ctx context.Context) ([]string, error) {
	infos, err := s.r.List(ctx, receiptPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		id := strings.TrimSuffix(strings.TrimPrefix(info.Path, receiptPrefix), ".json")
		if id != "" && id != info.Path {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var _ domain.ReceiptStore = (*ReceiptStore)(nil)
