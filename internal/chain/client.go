// Package chain talks to the ERC-721 ticket contract over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/gatepass/ticket-gate/internal/config"
)

// ErrReadOnly is returned by Mint when the client was built without a
// platform key.
var ErrReadOnly = errors.New("chain: client has no signing key")

// RevertedError reports a mint transaction that was mined but failed.
type RevertedError struct {
	TxHash common.Hash
}

func (e *RevertedError) Error() string {
	return "chain: transaction " + e.TxHash.Hex() + " reverted"
}

// Client wraps an ethclient connection bound to the ticket contract.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
}

// Dial connects to cfg.RPCURL.  When cfg.PlatformKey is set the client can
// also mint; otherwise it is read-only.
func Dial(ctx context.Context, cfg config.ChainConfig) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.ContractAddress)
	}
	var key *ecdsa.PrivateKey
	if cfg.Live() {
		k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PlatformKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("chain: parse platform key: %w", err)
		}
		key = k
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}
	addr := common.HexToAddress(cfg.ContractAddress)
	return &Client{
		eth:      eth,
		contract: bind.NewBoundContract(addr, parsedABI, eth, eth, eth),
		address:  addr,
		chainID:  big.NewInt(cfg.ChainID),
		key:      key,
	}, nil
}

// Contract returns the ticket contract address.
func (c *Client) Contract() common.Address { return c.address }

// PlatformAddress is the account mints are sent from, or the zero address
// for a read-only client.
func (c *Client) PlatformAddress() common.Address {
	if c.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

// Mint submits safeMint(to, uri) and blocks until the transaction is mined
// or ctx is done.  A mined but reverted transaction yields *RevertedError
// together with its receipt.
func (c *Client) Mint(ctx context.Context, to common.Address, uri string) (*types.Receipt, error) {
	if c.key == nil {
		return nil, ErrReadOnly
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, "safeMint", to, uri)
	if err != nil {
		return nil, fmt.Errorf("chain: submit safeMint: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &RevertedError{TxHash: receipt.TxHash}
	}
	return receipt, nil
}

// OwnerOf returns the current holder of tokenID.
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenID); err != nil {
		return common.Address{}, fmt.Errorf("chain: ownerOf(%s): %w", tokenID, err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("chain: ownerOf(%s): unexpected output", tokenID)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: ownerOf(%s): unexpected output type %T", tokenID, out[0])
	}
	return owner, nil
}

// TotalSupply returns the number of tokens minted so far.
func (c *Client) TotalSupply(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "totalSupply"); err != nil {
		return nil, fmt.Errorf("chain: totalSupply: %w", err)
	}
	if len(out) != 1 {
		return nil, errors.New("chain: totalSupply: unexpected output")
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: totalSupply: unexpected output type %T", out[0])
	}
	return n, nil
}

// Ping checks the RPC endpoint answers with the configured chain id.
func (c *Client) Ping(ctx context.Context) error {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain: chain id: %w", err)
	}
	if id.Cmp(c.chainID) != 0 {
		return fmt.Errorf("chain: rpc reports chain %s, configured %s", id, c.chainID)
	}
	return nil
}

// Close releases the RPC connection.
func (c *Client) Close() { c.eth.Close() }
