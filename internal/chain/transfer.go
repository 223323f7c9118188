package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)"), the
// first topic of every ERC-721 (and ERC-20) Transfer log.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ErrNotTransfer is returned by DecodeTransfer for logs that are not an
// ERC-721 Transfer emitted by the expected contract.
var ErrNotTransfer = errors.New("chain: log is not a ticket transfer")

// Transfer is a decoded ERC-721 Transfer event.
type Transfer struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

// IsMint reports whether the transfer originates from the zero address.
func (t Transfer) IsMint() bool { return t.From == (common.Address{}) }

// DecodeTransfer decodes lg against the contract ABI.  Logs from other
// addresses, other events, or with the wrong number of indexed topics are
// rejected with ErrNotTransfer.
func DecodeTransfer(contract common.Address, lg *types.Log) (Transfer, error) {
	if lg == nil || lg.Address != contract {
		return Transfer{}, ErrNotTransfer
	}
	ev := parsedABI.Events["Transfer"]
	if len(lg.Topics) != 4 || lg.Topics[0] != ev.ID {
		return Transfer{}, ErrNotTransfer
	}
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	fields := map[string]interface{}{}
	if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
		return Transfer{}, fmt.Errorf("%w: %v", ErrNotTransfer, err)
	}
	from, ok1 := fields["from"].(common.Address)
	to, ok2 := fields["to"].(common.Address)
	id, ok3 := fields["tokenId"].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return Transfer{}, ErrNotTransfer
	}
	return Transfer{From: from, To: to, TokenID: id}, nil
}

// TokenIDFromTopics reads the token id straight out of the fourth topic of
// any log whose first topic is TransferTopic, without consulting the ABI or
// the emitting address.
func TokenIDFromTopics(lg *types.Log) (*big.Int, bool) {
	if lg == nil || len(lg.Topics) < 4 || lg.Topics[0] != TransferTopic {
		return nil, false
	}
	return new(big.Int).SetBytes(lg.Topics[3].Bytes()), true
}

// NewTransferLog builds the log a mint of tokenID to `to` would emit.  It is
// used by tests and by the simulated ledger.
func NewTransferLog(contract, from, to common.Address, tokenID *big.Int) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(tokenID),
		},
	}
}
