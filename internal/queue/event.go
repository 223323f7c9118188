// Package queue defines the reconciliation messages exchanged over the
// message broker and the consumer that replays them into the store.
package queue

import (
	"errors"
	"time"

	"github.com/gatepass/ticket-gate/internal/model"
)

// ReconcileQueue is the durable queue minted-but-unrecorded tickets go to.
const ReconcileQueue = "ticket.reconcile"

// ParkedQueue holds reconcile messages that conflict with an existing
// ticket and need an operator.
const ParkedQueue = "ticket.reconcile.parked"

// ReconcileEvent is published when a token was minted on-chain but its
// ticket row could not be written.  It carries the whole row so the
// consumer never has to consult the chain.
type ReconcileEvent struct {
	EventID      uint64 `json:"event_id"`
	OwnerUserID  uint64 `json:"owner_user_id"`
	TokenID      uint64 `json:"token_id"`
	OwnerAddress string `json:"owner_address"`
	MintTxHash   string `json:"mint_tx_hash"`
	ChainBacked  bool   `json:"chain_backed"`
	FailedAt     string `json:"failed_at"`
}

var errIncompleteEvent = errors.New("reconcile event lacks token id or tx hash")

// NewReconcileEvent captures t for replay.
func NewReconcileEvent(t model.Ticket) (ReconcileEvent, error) {
	if t.TokenID == nil || t.MintTxHash == nil {
		return ReconcileEvent{}, errIncompleteEvent
	}
	return ReconcileEvent{
		EventID:      t.EventID,
		OwnerUserID:  t.OwnerUserID,
		TokenID:      *t.TokenID,
		OwnerAddress: t.OwnerAddress,
		MintTxHash:   *t.MintTxHash,
		ChainBacked:  t.ChainBacked,
		FailedAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Ticket rebuilds the row the issuer meant to write.
func (e ReconcileEvent) Ticket() (model.Ticket, error) {
	if e.MintTxHash == "" || e.EventID == 0 || e.OwnerUserID == 0 {
		return model.Ticket{}, errIncompleteEvent
	}
	id, hash := e.TokenID, e.MintTxHash
	return model.Ticket{
		EventID:      e.EventID,
		OwnerUserID:  e.OwnerUserID,
		TokenID:      &id,
		OwnerAddress: e.OwnerAddress,
		MintTxHash:   &hash,
		ChainBacked:  e.ChainBacked,
	}, nil
}
