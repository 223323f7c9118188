package ticketing

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gatepass/ticket-gate/internal/model"
)

// AddressProvider hands out a user's custodial address.
type AddressProvider interface {
	EnsureAddress(ctx context.Context, userID uint64) (common.Address, error)
}

// Minter submits a mint and returns its mined receipt.
type Minter interface {
	Mint(ctx context.Context, to common.Address, uri string) (*types.Receipt, error)
}

// OwnerReader answers who currently holds a token.
type OwnerReader interface {
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
}

type EventReader interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// TicketWriter persists newly issued tickets.
type TicketWriter interface {
	Create(ctx context.Context, t *model.Ticket) error
}

// TicketLedger is what redemption reads and flips.
type TicketLedger interface {
	GetByTokenID(ctx context.Context, tokenID uint64) (model.Ticket, error)
	MarkConsumed(ctx context.Context, id, staffID uint64) (bool, error)
}

// ReconcileSink durably records a ticket whose on-chain mint succeeded but
// whose database write did not.
type ReconcileSink interface {
	Reconcile(ctx context.Context, t model.Ticket) error
}
