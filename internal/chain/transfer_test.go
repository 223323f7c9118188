package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contract = common.HexToAddress("0x80948605d70Ffe40786AafC68c24bfd1a786B59D")
	holder   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestTransferTopic(t *testing.T) {
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		TransferTopic.Hex())
	assert.Equal(t, parsedABI.Events["Transfer"].ID, TransferTopic)
}

func TestDecodeTransfer_Mint(t *testing.T) {
	lg := NewTransferLog(contract, common.Address{}, holder, big.NewInt(7))

	tr, err := DecodeTransfer(contract, lg)
	require.NoError(t, err)
	assert.True(t, tr.IsMint())
	assert.Equal(t, holder, tr.To)
	assert.Equal(t, int64(7), tr.TokenID.Int64())
}

func TestDecodeTransfer_RejectsForeignContract(t *testing.T) {
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	lg := NewTransferLog(other, common.Address{}, holder, big.NewInt(7))

	_, err := DecodeTransfer(contract, lg)
	assert.ErrorIs(t, err, ErrNotTransfer)
}

func TestDecodeTransfer_RejectsERC20Shape(t *testing.T) {
	lg := NewTransferLog(contract, common.Address{}, holder, big.NewInt(7))
	lg.Topics = lg.Topics[:3]
	lg.Data = common.BigToHash(big.NewInt(7)).Bytes()

	_, err := DecodeTransfer(contract, lg)
	assert.ErrorIs(t, err, ErrNotTransfer)
}

func TestTokenIDFromTopics(t *testing.T) {
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	id, ok := TokenIDFromTopics(NewTransferLog(other, holder, holder, big.NewInt(42)))
	require.True(t, ok)
	assert.Equal(t, int64(42), id.Int64())

	_, ok = TokenIDFromTopics(&types.Log{Topics: []common.Hash{TransferTopic}})
	assert.False(t, ok)
	_, ok = TokenIDFromTopics(nil)
	assert.False(t, ok)
}
