package ticketing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gatepass/ticket-gate/internal/chain"
)

// MintResult is what the resolvers get to work with after a confirmed
// mint.
type MintResult struct {
	Receipt  *types.Receipt
	Contract common.Address
	Owner    common.Address
}

// TokenIDResolver extracts the minted token id.  ok=false with a nil error
// means "not found here, try the next strategy".  A non-nil error stops
// resolution.
type TokenIDResolver interface {
	Name() string
	Resolve(ctx context.Context, m MintResult) (id uint64, ok bool, err error)
}

// SupplyReader is the read side of the contract the supply strategy uses.
type SupplyReader interface {
	TotalSupply(ctx context.Context) (*big.Int, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
}

// DefaultResolvers returns the strategies in the order they are tried.
func DefaultResolvers(supply SupplyReader) []TokenIDResolver {
	return []TokenIDResolver{
		TransferEventResolver{},
		TransferTopicResolver{},
		SupplyResolver{Reader: supply},
	}
}

// TransferEventResolver decodes Transfer logs from the ticket contract and
// picks the one minted from the zero address.
type TransferEventResolver struct{}

func (TransferEventResolver) Name() string { return "transfer-event" }

func (TransferEventResolver) Resolve(_ context.Context, m MintResult) (uint64, bool, error) {
	if m.Receipt == nil {
		return 0, false, nil
	}
	for _, lg := range m.Receipt.Logs {
		tr, err := chain.DecodeTransfer(m.Contract, lg)
		if err != nil || !tr.IsMint() {
			continue
		}
		return toUint64(tr.TokenID)
	}
	return 0, false, nil
}

// TransferTopicResolver matches the Transfer signature hash on any log and
// reads the id from the fourth topic.  It catches receipts whose logs the
// typed decoder skipped, e.g. a proxy emitting under another address.
type TransferTopicResolver struct{}

func (TransferTopicResolver) Name() string { return "transfer-topic" }

func (TransferTopicResolver) Resolve(_ context.Context, m MintResult) (uint64, bool, error) {
	if m.Receipt == nil {
		return 0, false, nil
	}
	for _, lg := range m.Receipt.Logs {
		if id, ok := chain.TokenIDFromTopics(lg); ok {
			return toUint64(id)
		}
	}
	return 0, false, nil
}

// SupplyResolver assumes the newest token is ours and proves it: the
// candidate totalSupply-1 must be owned by the address we minted to.
// This strategy is last; failure here is final.
type SupplyResolver struct {
	Reader SupplyReader
}

func (SupplyResolver) Name() string { return "total-supply" }

var errZeroSupply = errors.New("total supply is zero")

func (r SupplyResolver) Resolve(ctx context.Context, m MintResult) (uint64, bool, error) {
	if r.Reader == nil {
		return 0, false, nil
	}
	supply, err := r.Reader.TotalSupply(ctx)
	if err != nil {
		return 0, false, err
	}
	if supply.Sign() <= 0 {
		return 0, false, errZeroSupply
	}
	candidate := new(big.Int).Sub(supply, big.NewInt(1))
	owner, err := r.Reader.OwnerOf(ctx, candidate)
	if err != nil {
		return 0, false, err
	}
	if owner != m.Owner {
		return 0, false, fmt.Errorf("token %s owned by %s, minted to %s", candidate, owner.Hex(), m.Owner.Hex())
	}
	return toUint64(candidate)
}

func toUint64(n *big.Int) (uint64, bool, error) {
	if n == nil || n.Sign() < 0 || !n.IsUint64() {
		return 0, false, fmt.Errorf("token id %v does not fit in uint64", n)
	}
	return n.Uint64(), true, nil
}
