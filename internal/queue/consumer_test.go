package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/repository"
)

type memRestorer struct {
	byHash map[string]model.Ticket
	err    error
}

func (m *memRestorer) Restore(_ context.Context, t *model.Ticket) error {
	if m.err != nil {
		return m.err
	}
	if existing, ok := m.byHash[*t.MintTxHash]; ok {
		t.ID = existing.ID
		return nil
	}
	t.ID = uint64(len(m.byHash) + 1)
	m.byHash[*t.MintTxHash] = *t
	return nil
}

func sampleEvent(t *testing.T) []byte {
	t.Helper()
	id, hash := uint64(7), "0xabc"
	ev, err := NewReconcileEvent(model.Ticket{
		EventID: 1, OwnerUserID: 42, TokenID: &id, OwnerAddress: "0x1111111111111111111111111111111111111111",
		MintTxHash: &hash, ChainBacked: true,
	})
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestHandleMessage_ReplayIsIdempotent(t *testing.T) {
	store := &memRestorer{byHash: map[string]model.Ticket{}}
	body := sampleEvent(t)

	require.NoError(t, HandleMessage(context.Background(), store, body, slog.Default()))
	require.NoError(t, HandleMessage(context.Background(), store, body, slog.Default()))

	require.Len(t, store.byHash, 1)
	got := store.byHash["0xabc"]
	assert.Equal(t, uint64(7), *got.TokenID)
	assert.True(t, got.ChainBacked)
}

func TestHandleMessage_Poison(t *testing.T) {
	store := &memRestorer{byHash: map[string]model.Ticket{}}
	err := HandleMessage(context.Background(), store, []byte("{"), slog.Default())
	assert.ErrorIs(t, err, errPoison)

	err = HandleMessage(context.Background(), store, []byte(`{"token_id":7}`), slog.Default())
	assert.ErrorIs(t, err, errPoison)
}

func TestHandleMessage_StoreDownIsRetryable(t *testing.T) {
	store := &memRestorer{err: errors.New("too many connections")}
	err := HandleMessage(context.Background(), store, sampleEvent(t), slog.Default())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errPoison)
}

func TestHandleMessage_TokenClashIsParked(t *testing.T) {
	store := &memRestorer{err: fmt.Errorf("restore: %w", repository.ErrTokenTaken)}
	err := HandleMessage(context.Background(), store, sampleEvent(t), slog.Default())
	require.Error(t, err)
	assert.ErrorIs(t, err, errParked)
	assert.NotErrorIs(t, err, errPoison)
	assert.Contains(t, err.Error(), "0xabc")
}

func TestNewReconcileEvent_RequiresMint(t *testing.T) {
	_, err := NewReconcileEvent(model.Ticket{EventID: 1})
	assert.Error(t, err)
}
