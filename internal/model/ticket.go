package model

import "time"

// Ticket is one admission right, optionally backed by an on-chain token.
//
// Fields:
//  ID                – primary key identifier.
//  EventID           – event the ticket admits to.
//  OwnerUserID       – purchasing user.
//  TokenID           – on-chain token id; nil only for fallback issuance.
//  OwnerAddress      – custodial address the token was minted to.
//  MintTxHash        – hash of the mint transaction; nil when simulated.
//  ChainBacked       – true when TokenID was confirmed by a real mint.
//  Consumed          – set once at the gate, never cleared.
//  ConsumedAt        – when the ticket was redeemed.
//  ConsumedByStaffID – staff member who scanned it.
//  CreatedAt         – issuance timestamp.
type Ticket struct {
	ID                uint64     // tickets.id
	EventID           uint64     // tickets.event_id
	OwnerUserID       uint64     // tickets.owner_user_id
	TokenID           *uint64    // tickets.token_id (nullable)
	OwnerAddress      string     // tickets.owner_address
	MintTxHash        *string    // tickets.mint_tx_hash (nullable)
	ChainBacked       bool       // tickets.chain_backed
	Consumed          bool       // tickets.consumed
	ConsumedAt        *time.Time // tickets.consumed_at (nullable)
	ConsumedByStaffID *uint64    // tickets.consumed_by_staff_id (nullable)
	CreatedAt         time.Time  // tickets.created_at
}
