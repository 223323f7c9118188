package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/repository"
	"github.com/gatepass/ticket-gate/internal/wallet"
)

type accounts map[uint64]model.User

func (a accounts) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := a[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (a accounts) SetWalletIfAbsent(_ context.Context, id uint64, addr, key string) (bool, error) {
	u := a[id]
	if u.WalletAddress != nil {
		return false, nil
	}
	u.WalletAddress, u.EncryptedWalletKey = &addr, &key
	a[id] = u
	return true, nil
}

func TestKeygen_PrintsUsableRecipient(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, runKeygen(&out, &errOut))

	_, err := age.ParseX25519Recipient(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	ids, err := age.ParseIdentities(&errOut)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestExportKey(t *testing.T) {
	ctx := context.Background()
	custody, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	stranger, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	store := accounts{5: {ID: 5}, 6: {ID: 6}}
	prov, err := wallet.NewProvisioner(store, custody.Recipient().String(), nil)
	require.NoError(t, err)
	addr, err := prov.EnsureAddress(ctx, 5)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, exportKey(ctx, store, 5, []age.Identity{stranger, custody}, &out))
	fields := strings.Fields(out.String())
	require.Len(t, fields, 2)
	assert.Equal(t, addr.Hex(), fields[0])
	assert.Len(t, fields[1], 64)

	assert.Error(t, exportKey(ctx, store, 5, []age.Identity{stranger}, &out))
	assert.ErrorIs(t, exportKey(ctx, store, 6, []age.Identity{custody}, &out), wallet.ErrNoWallet)
	assert.ErrorIs(t, exportKey(ctx, store, 9, []age.Identity{custody}, &out), repository.ErrNotFound)
}
