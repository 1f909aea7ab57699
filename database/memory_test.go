/*
Copyright 2025 LedgerLink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryAccounts(t *testing.T, m *MemoryDataSource, ledgerID string, balances map[string]int64) {
	t.Helper()
	ctx := context.Background()
	for accountID, balance := range balances {
		_, err := m.CreateAccount(ctx, model.NewAccount(ledgerID, accountID, balance))
		require.NoError(t, err)
	}
}

func memoryEscrow(t *testing.T, ledgerID string, amount int64, expiresAt time.Time) *model.Escrow {
	t.Helper()
	header, err := model.NewTransferHeader("",
		model.NewAddress(ledgerID, "alice"), model.NewAddress(ledgerID, "bob"),
		amount, []byte("cond"), nil, expiresAt)
	require.NoError(t, err)
	esc, err := model.NewEscrow(model.EscrowInputs{
		Header:           header,
		LocalSource:      model.NewAddress(ledgerID, "alice"),
		EscrowAccount:    model.NewAddress(ledgerID, "escrow"),
		LocalDestination: model.NewAddress(ledgerID, "bob"),
		Amount:           amount,
		ExpiresAt:        expiresAt,
	})
	require.NoError(t, err)
	return esc
}

func TestMemoryTransferConservation(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 500, "bob": 500})

	require.NoError(t, m.TransferFunds(ctx, "ledger-one", "alice", "bob", 25))

	alice, err := m.GetAccount(ctx, "ledger-one", "alice")
	require.NoError(t, err)
	bob, err := m.GetAccount(ctx, "ledger-one", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(475), alice.Balance)
	assert.Equal(t, int64(525), bob.Balance)
	assert.Equal(t, int64(1000), alice.Balance+bob.Balance)
}

func TestMemoryTransferNoNegativeBalances(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 10, "bob": 0})

	err := m.TransferFunds(ctx, "ledger-one", "alice", "bob", 25)
	assert.True(t, apierror.HasCode(err, apierror.ErrInsufficientFunds))

	// Both accounts are untouched after the failed transfer.
	alice, _ := m.GetAccount(ctx, "ledger-one", "alice")
	bob, _ := m.GetAccount(ctx, "ledger-one", "bob")
	assert.Equal(t, int64(10), alice.Balance)
	assert.Equal(t, int64(0), bob.Balance)
}

func TestMemoryTransferUnknownAccount(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 100})

	err := m.TransferFunds(ctx, "ledger-one", "alice", "ghost", 25)
	assert.True(t, apierror.HasCode(err, apierror.ErrAccountNotFound))

	alice, _ := m.GetAccount(ctx, "ledger-one", "alice")
	assert.Equal(t, int64(100), alice.Balance)
}

func TestMemoryEscrowTerminality(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 500, "bob": 500, "escrow": 0})

	esc := memoryEscrow(t, "ledger-one", 25, time.Now().Add(time.Minute))
	_, err := m.InitiateEscrow(ctx, esc)
	require.NoError(t, err)

	executed, err := m.ExecuteEscrow(ctx, "ledger-one", esc.Header.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowExecuted, executed.Status)

	// A second settlement in either direction fails with ESCROW_NOT_FOUND.
	_, err = m.ExecuteEscrow(ctx, "ledger-one", esc.Header.TransactionID)
	assert.True(t, apierror.HasCode(err, apierror.ErrEscrowNotFound))
	_, err = m.ReverseEscrow(ctx, "ledger-one", esc.Header.TransactionID)
	assert.True(t, apierror.HasCode(err, apierror.ErrEscrowNotFound))

	bob, _ := m.GetAccount(ctx, "ledger-one", "bob")
	assert.Equal(t, int64(525), bob.Balance)
}

func TestMemoryReverseEscrowRestoresSource(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 500, "bob": 500, "escrow": 0})

	esc := memoryEscrow(t, "ledger-one", 25, time.Now().Add(time.Minute))
	_, err := m.InitiateEscrow(ctx, esc)
	require.NoError(t, err)

	alice, _ := m.GetAccount(ctx, "ledger-one", "alice")
	escrowAcct, _ := m.GetAccount(ctx, "ledger-one", "escrow")
	assert.Equal(t, int64(475), alice.Balance)
	assert.Equal(t, int64(25), escrowAcct.Balance)

	reversed, err := m.ReverseEscrow(ctx, "ledger-one", esc.Header.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowReversed, reversed.Status)

	alice, _ = m.GetAccount(ctx, "ledger-one", "alice")
	escrowAcct, _ = m.GetAccount(ctx, "ledger-one", "escrow")
	assert.Equal(t, int64(500), alice.Balance)
	assert.Equal(t, int64(0), escrowAcct.Balance)
}

func TestMemoryExpiredEscrows(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 500, "bob": 500, "escrow": 0})

	past := memoryEscrow(t, "ledger-one", 10, time.Now().Add(-time.Second))
	future := memoryEscrow(t, "ledger-one", 10, time.Now().Add(time.Hour))
	_, err := m.InitiateEscrow(ctx, past)
	require.NoError(t, err)
	_, err = m.InitiateEscrow(ctx, future)
	require.NoError(t, err)

	expired, err := m.ExpiredEscrows(ctx, "ledger-one", time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, past.Header.TransactionID, expired[0].Header.TransactionID)
}

func TestMemoryPendingTransfers(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()

	header, err := model.NewTransferHeader("txn_9",
		model.NewAddress("ledger-one", gofakeit.Username()), model.NewAddress("ledger-two", gofakeit.Username()),
		100, nil, nil, time.Time{})
	require.NoError(t, err)

	require.NoError(t, m.AddPendingTransfer(ctx, model.PendingTransfer{
		TransactionID:       "txn_9",
		Header:              header,
		TargetLedgerID:      "ledger-two",
		OriginatingLedgerID: "ledger-one",
		CreatedAt:           time.Now(),
	}))

	pt, err := m.GetPendingTransfer(ctx, "txn_9")
	require.NoError(t, err)
	require.NotNil(t, pt)
	assert.Equal(t, "ledger-one", pt.OriginatingLedgerID)

	require.NoError(t, m.RemovePendingTransfer(ctx, "txn_9"))
	pt, err = m.GetPendingTransfer(ctx, "txn_9")
	require.NoError(t, err)
	assert.Nil(t, pt)
}

func TestMemoryConcurrentTransfers(t *testing.T) {
	m := NewMemoryDataSource()
	ctx := context.Background()
	seedMemoryAccounts(t, m, "ledger-one", map[string]int64{"alice": 1000, "bob": 1000})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.TransferFunds(ctx, "ledger-one", "alice", "bob", 5)
		}()
		go func() {
			defer wg.Done()
			_ = m.TransferFunds(ctx, "ledger-one", "bob", "alice", 5)
		}()
	}
	wg.Wait()

	alice, _ := m.GetAccount(ctx, "ledger-one", "alice")
	bob, _ := m.GetAccount(ctx, "ledger-one", "bob")
	assert.Equal(t, int64(2000), alice.Balance+bob.Balance)
}
