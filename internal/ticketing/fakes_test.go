package ticketing

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/repository"
)

var (
	contractAddr = common.HexToAddress("0x80948605d70Ffe40786AafC68c24bfd1a786B59D")
	ownerAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	strangerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	mintTx       = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")
)

type fakeWallets struct {
	addr common.Address
	err  error
}

func (f fakeWallets) EnsureAddress(context.Context, uint64) (common.Address, error) {
	return f.addr, f.err
}

type fakeEvents map[uint64]model.Event

func (f fakeEvents) GetByID(_ context.Context, id uint64) (model.Event, error) {
	ev, ok := f[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return ev, nil
}

// memTickets mimics the unique keys and the conditional consume UPDATE.
type memTickets struct {
	mu        sync.Mutex
	rows      map[uint64]*model.Ticket
	nextID    uint64
	createErr error
}

func newMemTickets() *memTickets { return &memTickets{rows: map[uint64]*model.Ticket{}} }

func (m *memTickets) Create(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.rows {
		if r.TokenID != nil && t.TokenID != nil && *r.TokenID == *t.TokenID {
			return repository.ErrConflict
		}
	}
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTickets) GetByTokenID(_ context.Context, tokenID uint64) (model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TokenID != nil && *r.TokenID == tokenID {
			return *r, nil
		}
	}
	return model.Ticket{}, repository.ErrNotFound
}

func (m *memTickets) MarkConsumed(_ context.Context, id, staffID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Consumed {
		return false, nil
	}
	r.Consumed = true
	r.ConsumedByStaffID = &staffID
	return true, nil
}

type fakeMinter struct {
	receipt *types.Receipt
	err     error
	gotTo   common.Address
	gotURI  string
}

func (f *fakeMinter) Mint(_ context.Context, to common.Address, uri string) (*types.Receipt, error) {
	f.gotTo, f.gotURI = to, uri
	return f.receipt, f.err
}

type fakeChain struct {
	supply   *big.Int
	owners   map[uint64]common.Address
	err      error
	ownerErr error
}

func (f fakeChain) TotalSupply(context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.supply, nil
}

func (f fakeChain) OwnerOf(_ context.Context, id *big.Int) (common.Address, error) {
	if f.ownerErr != nil {
		return common.Address{}, f.ownerErr
	}
	a, ok := f.owners[id.Uint64()]
	if !ok {
		return common.Address{}, errors.New("execution reverted: ERC721NonexistentToken")
	}
	return a, nil
}

type countingResolver struct {
	TokenIDResolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, m MintResult) (uint64, bool, error) {
	c.calls++
	return c.TokenIDResolver.Resolve(ctx, m)
}

type recordingSink struct {
	got []model.Ticket
	err error
}

func (s *recordingSink) Reconcile(_ context.Context, t model.Ticket) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, t)
	return nil
}

func receiptWith(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: mintTx, Logs: logs}
}
