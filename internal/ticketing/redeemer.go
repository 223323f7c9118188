package ticketing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/monitoring"
	"github.com/gatepass/ticket-gate/internal/repository"
	"github.com/gatepass/ticket-gate/internal/signing"
)

// Reason classifies a rejected scan.  It is empty for accepted tickets.
type Reason string

const (
	ReasonForged            Reason = "forged"
	ReasonUnknown           Reason = "unknown"
	ReasonWrongEvent        Reason = "wrong-event"
	ReasonAlreadyUsed       Reason = "already-used"
	ReasonOwnershipMismatch Reason = "ownership-mismatch"
	ReasonChainUnavailable  Reason = "chain-unavailable"
)

var rejectMessages = map[Reason]string{
	ReasonForged:            "Invalid signature - Ticket is forged",
	ReasonUnknown:           "Ticket not found in database",
	ReasonWrongEvent:        "Ticket is for a different event",
	ReasonAlreadyUsed:       "Ticket already used",
	ReasonOwnershipMismatch: "Blockchain verification failed - Token ownership mismatch",
	ReasonChainUnavailable:  "Blockchain verification failed - Unable to verify token ownership",
}

// Outcome is the answer shown to gate staff.
type Outcome struct {
	Accepted bool
	Reason   Reason
	Message  string
	TicketID uint64
}

func reject(r Reason) Outcome {
	return Outcome{Reason: r, Message: rejectMessages[r]}
}

const defaultOwnerReadTimeout = 10 * time.Second

// Redeemer checks a scanned credential and consumes the ticket it names.
type Redeemer struct {
	signer  *signing.Signer
	tickets TicketLedger
	events  EventReader
	owners  OwnerReader
	logger  *slog.Logger

	// OwnerReadTimeout bounds the ownerOf call for chain-backed tickets.
	OwnerReadTimeout time.Duration
}

// NewRedeemer wires a Redeemer.  owners may be nil when no chain is
// configured; chain-backed tickets are then rejected as unverifiable.
func NewRedeemer(signer *signing.Signer, tickets TicketLedger, events EventReader, owners OwnerReader, logger *slog.Logger) *Redeemer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redeemer{
		signer:           signer,
		tickets:          tickets,
		events:           events,
		owners:           owners,
		logger:           logger,
		OwnerReadTimeout: defaultOwnerReadTimeout,
	}
}

// Redeem runs the gate checks in order and stops at the first failure:
// signature, existence, event, prior use, ownership, then the atomic
// consume.  Rejections come back as an Outcome; only malformed input and
// store failures are errors.
func (r *Redeemer) Redeem(ctx context.Context, credential string, staffEventID, staffID uint64) (Outcome, error) {
	out, err := r.redeem(ctx, credential, staffEventID, staffID)
	switch {
	case err != nil:
		monitoring.TrackScan(errorKind(err))
	case out.Accepted:
		monitoring.TrackScan("accepted")
	default:
		monitoring.TrackScan(string(out.Reason))
	}
	return out, err
}

func (r *Redeemer) redeem(ctx context.Context, credential string, staffEventID, staffID uint64) (Outcome, error) {
	cred, err := signing.Decode(credential)
	if err != nil {
		return Outcome{}, &ValidationError{Field: "qr_data", Msg: "malformed credential", Err: err}
	}
	if !r.signer.Verify(cred.Payload, cred.Signature) {
		return reject(ReasonForged), nil
	}
	log := r.logger.With("token_id", cred.Payload.TokenID, "staff_id", staffID, "staff_event_id", staffEventID)

	t, err := r.tickets.GetByTokenID(ctx, cred.Payload.TokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return reject(ReasonUnknown), nil
	}
	if err != nil {
		return Outcome{}, &StorageError{Op: "load ticket", Err: err}
	}
	if t.EventID != staffEventID {
		return reject(ReasonWrongEvent), nil
	}
	if t.Consumed {
		return reject(ReasonAlreadyUsed), nil
	}

	if reason, ok := r.checkOwner(ctx, t, cred.Payload, log); !ok {
		return reject(reason), nil
	}

	title, err := r.eventTitle(ctx, t.EventID)
	if err != nil {
		return Outcome{}, err
	}

	won, err := r.tickets.MarkConsumed(ctx, t.ID, staffID)
	if err != nil {
		return Outcome{}, &StorageError{Op: "consume ticket", Err: err}
	}
	if !won {
		return reject(ReasonAlreadyUsed), nil
	}
	log.Info("ticket redeemed", "ticket_id", t.ID)
	return Outcome{Accepted: true, Message: "Valid ticket for " + title, TicketID: t.ID}, nil
}

// checkOwner compares the credential's owner to the token holder.  For
// chain-backed tickets the holder comes from the contract; simulated
// tickets have no token, so the stored owner is authoritative.
func (r *Redeemer) checkOwner(ctx context.Context, t model.Ticket, p signing.Payload, log *slog.Logger) (Reason, bool) {
	if !common.IsHexAddress(p.Owner) {
		return ReasonOwnershipMismatch, false
	}
	claimed := common.HexToAddress(p.Owner)

	if !t.ChainBacked {
		if claimed != common.HexToAddress(t.OwnerAddress) {
			return ReasonOwnershipMismatch, false
		}
		return "", true
	}

	if r.owners == nil {
		log.Warn("no owner reader for chain-backed ticket")
		return ReasonChainUnavailable, false
	}
	readCtx, cancel := context.WithTimeout(ctx, r.OwnerReadTimeout)
	defer cancel()
	holder, err := r.owners.OwnerOf(readCtx, bigID(*t.TokenID))
	if err != nil {
		log.Warn("ownerOf failed", "err", err)
		return ReasonChainUnavailable, false
	}
	if holder != claimed {
		log.Warn("token ownership mismatch", "holder", holder.Hex(), "claimed", claimed.Hex())
		return ReasonOwnershipMismatch, false
	}
	return "", true
}

func (r *Redeemer) eventTitle(ctx context.Context, eventID uint64) (string, error) {
	ev, err := r.events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Sprintf("event %d", eventID), nil
	}
	if err != nil {
		return "", &StorageError{Op: "load event", Err: err}
	}
	return ev.Title, nil
}

// Credential renders the QR string for a stored ticket.
func Credential(signer *signing.Signer, t model.Ticket) (string, error) {
	if t.TokenID == nil {
		return "", &ValidationError{Field: "ticket", Msg: "ticket has no token id"}
	}
	return signer.Issue(signing.Payload{TokenID: *t.TokenID, Owner: t.OwnerAddress})
}
