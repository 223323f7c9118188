package ticketing

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/ticket-gate/internal/chain"
	"github.com/gatepass/ticket-gate/internal/model"
)

var demoEvents = fakeEvents{1: {ID: 1, HostUserID: 9, Title: "Demo Night"}}

func liveIssuer(t *testing.T, minter *fakeMinter, tickets *memTickets, sink ReconcileSink, resolvers ...TokenIDResolver) *Issuer {
	t.Helper()
	iss, err := NewIssuer(
		IssuerConfig{Mode: LiveMinting, Contract: contractAddr, MetadataBaseURL: "https://meta.example"},
		IssuerDeps{
			Wallets:   fakeWallets{addr: ownerAddr},
			Events:    demoEvents,
			Tickets:   tickets,
			Minter:    minter,
			Resolvers: resolvers,
			Sink:      sink,
		})
	require.NoError(t, err)
	return iss
}

func counted(rs ...TokenIDResolver) []*countingResolver {
	out := make([]*countingResolver, len(rs))
	for i, r := range rs {
		out[i] = &countingResolver{TokenIDResolver: r}
	}
	return out
}

func asResolvers(cs []*countingResolver) []TokenIDResolver {
	out := make([]TokenIDResolver, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}

func TestNewIssuer_LiveNeedsMinter(t *testing.T) {
	_, err := NewIssuer(IssuerConfig{Mode: LiveMinting}, IssuerDeps{
		Wallets: fakeWallets{}, Events: demoEvents, Tickets: newMemTickets(),
	})
	assert.Error(t, err)
}

func TestIssue_Simulated(t *testing.T) {
	tickets := newMemTickets()
	iss, err := NewIssuer(IssuerConfig{Mode: SimulatedMinting}, IssuerDeps{
		Wallets: fakeWallets{addr: ownerAddr}, Events: demoEvents, Tickets: tickets,
	})
	require.NoError(t, err)
	iss.randID = func() uint64 { return 7 }

	tk, err := iss.IssueTicket(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *tk.TokenID)
	assert.False(t, tk.ChainBacked)
	assert.Nil(t, tk.MintTxHash)
	assert.Equal(t, ownerAddr.Hex(), tk.OwnerAddress)
}

func TestIssue_SimulatedIDsStayClearOfChainIDs(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{Mode: SimulatedMinting}, IssuerDeps{
		Wallets: fakeWallets{addr: ownerAddr}, Events: demoEvents, Tickets: newMemTickets(),
	})
	require.NoError(t, err)
	assert.Equal(t, SimulatedMinting, iss.Mode())

	tk, err := iss.IssueTicket(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, *tk.TokenID, uint64(simulatedIDBase))
	assert.Less(t, *tk.TokenID, uint64(1<<53))
}

func TestIssue_SimulatedRetriesOnCollision(t *testing.T) {
	tickets := newMemTickets()
	iss, err := NewIssuer(IssuerConfig{Mode: SimulatedMinting}, IssuerDeps{
		Wallets: fakeWallets{addr: ownerAddr}, Events: demoEvents, Tickets: tickets,
	})
	require.NoError(t, err)
	seq := []uint64{7, 7, 8}
	iss.randID = func() uint64 { v := seq[0]; seq = seq[1:]; return v }

	_, err = iss.IssueTicket(context.Background(), 1, 42)
	require.NoError(t, err)
	second, err := iss.IssueTicket(context.Background(), 1, 43)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), *second.TokenID)
}

func TestIssue_Validation(t *testing.T) {
	iss := liveIssuer(t, &fakeMinter{}, newMemTickets(), nil, TransferEventResolver{})

	var verr *ValidationError
	_, err := iss.IssueTicket(context.Background(), 0, 42)
	assert.ErrorAs(t, err, &verr)
	_, err = iss.IssueTicket(context.Background(), 99, 42)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "event_id", verr.Field)
}

func TestIssue_WalletStoreFailure(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{Mode: SimulatedMinting}, IssuerDeps{
		Wallets: fakeWallets{err: errors.New("db down")}, Events: demoEvents, Tickets: newMemTickets(),
	})
	require.NoError(t, err)
	_, err = iss.IssueTicket(context.Background(), 1, 42)
	var serr *StorageError
	assert.ErrorAs(t, err, &serr)
}

func TestIssue_LiveTypedEventWins(t *testing.T) {
	minter := &fakeMinter{receipt: receiptWith(
		chain.NewTransferLog(contractAddr, common.Address{}, ownerAddr, big.NewInt(7)),
	)}
	rs := counted(TransferEventResolver{}, TransferTopicResolver{}, SupplyResolver{Reader: fakeChain{}})
	tickets := newMemTickets()
	iss := liveIssuer(t, minter, tickets, nil, asResolvers(rs)...)

	tk, err := iss.IssueTicket(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *tk.TokenID)
	assert.True(t, tk.ChainBacked)
	assert.Equal(t, mintTx.Hex(), *tk.MintTxHash)
	assert.Equal(t, ownerAddr, minter.gotTo)
	assert.Equal(t, "https://meta.example/nft/1/42", minter.gotURI)

	assert.Equal(t, 1, rs[0].calls)
	assert.Equal(t, 0, rs[1].calls)
	assert.Equal(t, 0, rs[2].calls)
}

func TestIssue_LiveFallsBackToRawTopic(t *testing.T) {
	proxy := common.HexToAddress("0x3333333333333333333333333333333333333333")
	minter := &fakeMinter{receipt: receiptWith(
		chain.NewTransferLog(proxy, common.Address{}, ownerAddr, big.NewInt(11)),
	)}
	rs := counted(TransferEventResolver{}, TransferTopicResolver{}, SupplyResolver{Reader: fakeChain{}})
	iss := liveIssuer(t, minter, newMemTickets(), nil, asResolvers(rs)...)

	tk, err := iss.IssueTicket(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), *tk.TokenID)
	assert.Equal(t, []int{1, 1, 0}, []int{rs[0].calls, rs[1].calls, rs[2].calls})
}

func TestIssue_LiveFallsBackToSupply(t *testing.T) {
	minter := &fakeMinter{receipt: receiptWith()}
	supply := fakeChain{supply: big.NewInt(5), owners: map[uint64]common.Address{4: ownerAddr}}
	rs := counted(TransferEventResolver{}, TransferTopicResolver{}, SupplyResolver{Reader: supply})
	iss := liveIssuer(t, minter, newMemTickets(), nil, asResolvers(rs)...)

	tk, err := iss.IssueTicket(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), *tk.TokenID)
	assert.Equal(t, []int{1, 1, 1}, []int{rs[0].calls, rs[1].calls, rs[2].calls})
}

func TestIssue_SupplyOwnerMismatchIsUnresolved(t *testing.T) {
	minter := &fakeMinter{receipt: receiptWith()}
	supply := fakeChain{supply: big.NewInt(5), owners: map[uint64]common.Address{4: strangerAddr}}
	tickets := newMemTickets()
	iss := liveIssuer(t, minter, tickets, nil, DefaultResolvers(supply)...)

	_, err := iss.IssueTicket(context.Background(), 1, 42)
	var uerr *TokenIDUnresolvedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, mintTx.Hex(), uerr.TxHash)
	assert.Empty(t, tickets.rows)
}

func TestIssue_ZeroSupplyIsUnresolved(t *testing.T) {
	minter := &fakeMinter{receipt: receiptWith()}
	iss := liveIssuer(t, minter, newMemTickets(), nil, DefaultResolvers(fakeChain{supply: big.NewInt(0)})...)

	_, err := iss.IssueTicket(context.Background(), 1, 42)
	var uerr *TokenIDUnresolvedError
	assert.ErrorAs(t, err, &uerr)
}

func TestIssue_MintFailure(t *testing.T) {
	reverted := receiptWith()
	minter := &fakeMinter{receipt: reverted, err: &chain.RevertedError{TxHash: mintTx}}
	tickets := newMemTickets()
	iss := liveIssuer(t, minter, tickets, nil, TransferEventResolver{})

	_, err := iss.IssueTicket(context.Background(), 1, 42)
	var merr *MintTransactionError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, mintTx.Hex(), merr.TxHash)
	var rev *chain.RevertedError
	assert.ErrorAs(t, err, &rev)
	assert.Empty(t, tickets.rows)
}

func TestIssue_MintTimeout(t *testing.T) {
	minter := &fakeMinter{err: context.DeadlineExceeded}
	iss := liveIssuer(t, minter, newMemTickets(), nil, TransferEventResolver{})

	_, err := iss.IssueTicket(context.Background(), 1, 42)
	var merr *MintTransactionError
	require.ErrorAs(t, err, &merr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, merr.TxHash)
}

func TestIssue_PersistFailureIsQueued(t *testing.T) {
	minter := &fakeMinter{receipt: receiptWith(
		chain.NewTransferLog(contractAddr, common.Address{}, ownerAddr, big.NewInt(7)),
	)}
	tickets := newMemTickets()
	tickets.createErr = errors.New("connection reset")
	sink := &recordingSink{}
	iss := liveIssuer(t, minter, tickets, sink, TransferEventResolver{})

	_, err := iss.IssueTicket(context.Background(), 1, 42)
	var rerr *ReconciliationError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Queued)
	require.Len(t, sink.got, 1)
	queued := sink.got[0]
	assert.Equal(t, uint64(7), *queued.TokenID)
	assert.Equal(t, mintTx.Hex(), *queued.MintTxHash)
	assert.True(t, queued.ChainBacked)
}

func TestIssue_PersistFailureSinkDown(t *testing.T) {
	minter := &fakeMinter{receipt: receiptWith(
		chain.NewTransferLog(contractAddr, common.Address{}, ownerAddr, big.NewInt(7)),
	)}
	tickets := newMemTickets()
	tickets.createErr = errors.New("connection reset")
	iss := liveIssuer(t, minter, tickets, &recordingSink{err: errors.New("broker down")}, TransferEventResolver{})

	_, err := iss.IssueTicket(context.Background(), 1, 42)
	var rerr *ReconciliationError
	require.ErrorAs(t, err, &rerr)
	assert.False(t, rerr.Queued)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "validation", errorKind(&ValidationError{Msg: "x"}))
	assert.Equal(t, "reconcile", errorKind(&ReconciliationError{Ticket: model.Ticket{}, Err: errors.New("x")}))
	assert.Equal(t, "error", errorKind(errors.New("plain")))
}
