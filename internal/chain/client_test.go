package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Addresses(t *testing.T) {
	contract := common.HexToAddress("0x80948605d70Ffe40786AafC68c24bfd1a786B59D")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	live := &Client{address: contract, key: key}
	assert.Equal(t, contract, live.Contract())
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), live.PlatformAddress())

	readOnly := &Client{address: contract}
	assert.Equal(t, common.Address{}, readOnly.PlatformAddress())
	_, err = readOnly.Mint(context.Background(), contract, "uri")
	assert.ErrorIs(t, err, ErrReadOnly)
}
