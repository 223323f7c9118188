// Package wallet provisions the custodial addresses tickets are minted to.
//
// Each user gets at most one address.  Its secp256k1 key is encrypted to an
// age recipient before it touches the database; the matching identity stays
// with operators, so the service itself can create keys but not spend them.
package wallet

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"filippo.io/age"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gatepass/ticket-gate/internal/model"
)

// ErrNoWallet is returned by SignerFor for a user without an address.
var ErrNoWallet = errors.New("wallet: user has no custodial wallet")

// ErrKeyMismatch means a decrypted key does not control the stored address.
var ErrKeyMismatch = errors.New("wallet: decrypted key does not match address")

// AccountStore is the slice of the user repository the provisioner needs.
type AccountStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	SetWalletIfAbsent(ctx context.Context, userID uint64, address, encryptedKey string) (bool, error)
}

type Provisioner struct {
	store     AccountStore
	recipient age.Recipient
	logger    *slog.Logger
}

// NewProvisioner parses recipient as an age X25519 public key
// ("age1...").
func NewProvisioner(store AccountStore, recipient string, logger *slog.Logger) (*Provisioner, error) {
	r, err := age.ParseX25519Recipient(strings.TrimSpace(recipient))
	if err != nil {
		return nil, fmt.Errorf("wallet: parse custody recipient: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: store, recipient: r, logger: logger}, nil
}

// EnsureAddress returns the user's custodial address, creating it on first
// use.  Concurrent first calls for the same user agree on one address: the
// write is conditional and a loser re-reads the winner's value.
func (p *Provisioner) EnsureAddress(ctx context.Context, userID uint64) (common.Address, error) {
	u, err := p.store.GetByID(ctx, userID)
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet: load user %d: %w", userID, err)
	}
	if u.WalletAddress != nil {
		return common.HexToAddress(*u.WalletAddress), nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet: generate key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	sealed, err := p.seal(key)
	if err != nil {
		return common.Address{}, err
	}

	written, err := p.store.SetWalletIfAbsent(ctx, userID, addr.Hex(), sealed)
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet: store address for user %d: %w", userID, err)
	}
	if written {
		p.logger.Info("custodial wallet created", "user_id", userID, "address", addr.Hex())
		return addr, nil
	}

	u, err = p.store.GetByID(ctx, userID)
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet: reload user %d: %w", userID, err)
	}
	if u.WalletAddress == nil {
		return common.Address{}, fmt.Errorf("wallet: user %d: address write lost and none stored", userID)
	}
	return common.HexToAddress(*u.WalletAddress), nil
}

// SignerFor decrypts a user's key with an operator-held identity.
func SignerFor(ctx context.Context, store AccountStore, userID uint64, identity age.Identity) (*ecdsa.PrivateKey, error) {
	u, err := store.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wallet: load user %d: %w", userID, err)
	}
	if u.WalletAddress == nil || u.EncryptedWalletKey == nil {
		return nil, ErrNoWallet
	}
	key, err := open(*u.EncryptedWalletKey, identity)
	if err != nil {
		return nil, err
	}
	if crypto.PubkeyToAddress(key.PublicKey) != common.HexToAddress(*u.WalletAddress) {
		return nil, ErrKeyMismatch
	}
	return key, nil
}

func (p *Provisioner) seal(key *ecdsa.PrivateKey) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, p.recipient)
	if err != nil {
		return "", fmt.Errorf("wallet: encrypt key: %w", err)
	}
	if _, err := io.WriteString(w, hex.EncodeToString(crypto.FromECDSA(key))); err != nil {
		return "", fmt.Errorf("wallet: encrypt key: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("wallet: encrypt key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func open(ciphertext string, identity age.Identity) (*ecdsa.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode sealed key: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("wallet: decrypt key: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wallet: decrypt key: %w", err)
	}
	key, err := crypto.HexToECDSA(string(plain))
	if err != nil {
		return nil, fmt.Errorf("wallet: parse decrypted key: %w", err)
	}
	return key, nil
}
