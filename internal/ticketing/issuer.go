package ticketing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/monitoring"
	"github.com/gatepass/ticket-gate/internal/repository"
)

const (
	// Simulated token ids live above simulatedIDBase, far from the chain's
	// sequential ids and still exact as a JSON number.
	simulatedIDBase     = 1 << 52
	simulatedIDSpace    = 1_000_000
	simulatedIDAttempts = 5
	defaultConfirmWait  = 2 * time.Minute
)

// IssuerConfig holds the fixed parameters of an Issuer.
type IssuerConfig struct {
	Mode            Mode
	Contract        common.Address
	MetadataBaseURL string
	ConfirmTimeout  time.Duration
}

// IssuerDeps are the collaborators of an Issuer.  Minter and Resolvers are
// only required for LiveMinting; Sink may be nil, in which case a failed
// write is logged but not queued.
type IssuerDeps struct {
	Wallets   AddressProvider
	Events    EventReader
	Tickets   TicketWriter
	Minter    Minter
	Resolvers []TokenIDResolver
	Sink      ReconcileSink
	Logger    *slog.Logger
}

// Issuer turns a purchase into a persisted ticket.
type Issuer struct {
	cfg  IssuerConfig
	deps IssuerDeps

	randID func() uint64
}

func NewIssuer(cfg IssuerConfig, deps IssuerDeps) (*Issuer, error) {
	if deps.Wallets == nil || deps.Events == nil || deps.Tickets == nil {
		return nil, errors.New("ticketing: issuer needs wallets, events and tickets")
	}
	if cfg.Mode == LiveMinting && (deps.Minter == nil || len(deps.Resolvers) == 0) {
		return nil, errors.New("ticketing: live minting needs a minter and at least one resolver")
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmWait
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Issuer{
		cfg:    cfg,
		deps:   deps,
		randID: func() uint64 { return simulatedIDBase + rand.Uint64N(simulatedIDSpace) },
	}, nil
}

// Mode reports how this issuer mints.
func (s *Issuer) Mode() Mode { return s.cfg.Mode }

// MetadataURI is the token URI recorded on-chain for a purchase.
func (s *Issuer) MetadataURI(eventID, userID uint64) string {
	return fmt.Sprintf("%s/nft/%d/%d", s.cfg.MetadataBaseURL, eventID, userID)
}

// IssueTicket mints (or simulates) a ticket for userID to eventID and
// records it.  Callers should pass a context that outlives the client
// request: once safeMint is sent the outcome must be recorded either way.
func (s *Issuer) IssueTicket(ctx context.Context, eventID, userID uint64) (t model.Ticket, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errorKind(err)
		}
		monitoring.TrackMint(s.cfg.Mode.String(), outcome, time.Since(start))
	}()

	if eventID == 0 {
		return model.Ticket{}, &ValidationError{Field: "event_id", Msg: "required"}
	}
	if userID == 0 {
		return model.Ticket{}, &ValidationError{Field: "user_id", Msg: "required"}
	}
	if _, err := s.deps.Events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Ticket{}, &ValidationError{Field: "event_id", Msg: "event not found", Err: err}
		}
		return model.Ticket{}, &StorageError{Op: "load event", Err: err}
	}

	owner, err := s.deps.Wallets.EnsureAddress(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Ticket{}, &ValidationError{Field: "user_id", Msg: "user not found", Err: err}
		}
		return model.Ticket{}, &StorageError{Op: "provision wallet", Err: err}
	}

	if s.cfg.Mode == SimulatedMinting {
		return s.issueSimulated(ctx, eventID, userID, owner)
	}
	return s.issueLive(ctx, eventID, userID, owner)
}

func (s *Issuer) issueSimulated(ctx context.Context, eventID, userID uint64, owner common.Address) (model.Ticket, error) {
	var lastErr error
	for i := 0; i < simulatedIDAttempts; i++ {
		id := s.randID()
		t := model.Ticket{
			EventID:      eventID,
			OwnerUserID:  userID,
			TokenID:      &id,
			OwnerAddress: owner.Hex(),
		}
		err := s.deps.Tickets.Create(ctx, &t)
		if err == nil {
			s.deps.Logger.Info("ticket issued", "mode", s.cfg.Mode.String(),
				"ticket_id", t.ID, "token_id", id, "event_id", eventID, "user_id", userID)
			return t, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return model.Ticket{}, &StorageError{Op: "create ticket", Err: err}
		}
		lastErr = err
	}
	return model.Ticket{}, &StorageError{Op: "allocate simulated token id", Err: lastErr}
}

func (s *Issuer) issueLive(ctx context.Context, eventID, userID uint64, owner common.Address) (model.Ticket, error) {
	log := s.deps.Logger.With("event_id", eventID, "user_id", userID, "owner", owner.Hex())

	mintCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	receipt, err := s.deps.Minter.Mint(mintCtx, owner, s.MetadataURI(eventID, userID))
	cancel()
	if err != nil {
		merr := &MintTransactionError{Err: err}
		if receipt != nil {
			merr.TxHash = receipt.TxHash.Hex()
		}
		log.Warn("mint failed", "tx", merr.TxHash, "err", err)
		return model.Ticket{}, merr
	}
	txHash := receipt.TxHash.Hex()
	log = log.With("tx", txHash)

	tokenID, err := s.resolveTokenID(ctx, MintResult{Receipt: receipt, Contract: s.cfg.Contract, Owner: owner}, log)
	if err != nil {
		return model.Ticket{}, &TokenIDUnresolvedError{TxHash: txHash, Err: err}
	}

	t := model.Ticket{
		EventID:      eventID,
		OwnerUserID:  userID,
		TokenID:      &tokenID,
		OwnerAddress: owner.Hex(),
		MintTxHash:   &txHash,
		ChainBacked:  true,
	}
	if err := s.deps.Tickets.Create(ctx, &t); err != nil {
		return model.Ticket{}, s.handOff(ctx, t, err, log)
	}
	log.Info("ticket issued", "mode", s.cfg.Mode.String(), "ticket_id", t.ID, "token_id", tokenID)
	return t, nil
}

var errNoStrategy = errors.New("no strategy found the minted token")

func (s *Issuer) resolveTokenID(ctx context.Context, m MintResult, log *slog.Logger) (uint64, error) {
	for _, r := range s.deps.Resolvers {
		id, ok, err := r.Resolve(ctx, m)
		switch {
		case err != nil:
			monitoring.TrackResolver(r.Name(), "error")
			log.Warn("token id resolution failed", "strategy", r.Name(), "err", err)
			return 0, fmt.Errorf("%s: %w", r.Name(), err)
		case ok:
			monitoring.TrackResolver(r.Name(), "hit")
			log.Debug("token id resolved", "strategy", r.Name(), "token_id", id)
			return id, nil
		default:
			monitoring.TrackResolver(r.Name(), "miss")
		}
	}
	return 0, errNoStrategy
}

// handOff queues a ticket whose token exists but whose row could not be
// written.  The record is logged in full so it survives even if the queue
// is down.
func (s *Issuer) handOff(ctx context.Context, t model.Ticket, cause error, log *slog.Logger) error {
	rerr := &ReconciliationError{Ticket: t, Err: cause}
	if s.deps.Sink != nil {
		if err := s.deps.Sink.Reconcile(ctx, t); err != nil {
			log.Error("reconcile publish failed", "err", err)
		} else {
			rerr.Queued = true
		}
	}
	log.Error("minted ticket not persisted",
		"token_id", *t.TokenID, "queued", rerr.Queued, "err", cause)
	return rerr
}

// errorKind names the taxonomy class of err for metrics.
func errorKind(err error) string {
	var (
		v *ValidationError
		m *MintTransactionError
		u *TokenIDUnresolvedError
		r *ReconciliationError
		s *StorageError
	)
	switch {
	case errors.As(err, &v):
		return "validation"
	case errors.As(err, &m):
		return "mint"
	case errors.As(err, &u):
		return "unresolved"
	case errors.As(err, &r):
		return "reconcile"
	case errors.As(err, &s):
		return "storage"
	}
	return "error"
}

func bigID(id uint64) *big.Int { return new(big.Int).SetUint64(id) }
