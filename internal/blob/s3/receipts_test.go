package s3blob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

func TestReceiptStoreSaveLoad(t *testing.T) {
	blob := NewMemoryBlob()
	store := NewReceiptStore(blob, blob)
	ctx := context.Background()

	rc := domain.DrawReceipt{
		CompetitionID: "c1",
		Seed:          "ab",
		BlockHash:     "0x01",
		EntropySource: "explorer",
		TicketsSold:   5,
		WinningTicket: 2,
		WinnerUserID:  "u1",
		CompletedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, rc))

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, rc, got)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestReceiptStoreIsWriteOnce(t *testing.T) {
	blob := NewMemoryBlob()
	store := NewReceiptStore(blob, blob)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.DrawReceipt{CompetitionID: "c1", WinningTicket: 2}))
	require.NoError(t, store.Save(ctx, domain.DrawReceipt{CompetitionID: "c1", WinningTicket: 9}))

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.WinningTicket)
}

func TestReceiptStoreMissing(t *testing.T) {
	blob := NewMemoryBlob()
	_, err := NewReceiptStore(blob, blob).Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceiptStoreRejectsEmptyID(t *testing.T) {
	blob := NewMemoryBlob()
	err := NewReceiptStore(blob, blob).Save(context.Background(), domain.DrawReceipt{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://r2.example", normaliseEndpoint("r2.example", true))
	assert.Equal(t, "http://x:1", normaliseEndpoint("http://x:1", true))
}

type stampSigner struct{}

func (stampSigner) Sign(r domain.DrawReceipt) (domain.DrawReceipt, error) {
	r.Signer = "0xabc"
	r.Signature = "sig:" + r.CompetitionID
	return r, nil
}

func TestReceiptStoreSignsOnSave(t *testing.T) {
	blob := NewMemoryBlob()
	store := NewReceiptStore(blob, blob, WithSigner(stampSigner{}))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.DrawReceipt{CompetitionID: "c3"}))
	got, err := store.Load(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Signer)
	assert.Equal(t, "sig:c3", got.Signature)
}
