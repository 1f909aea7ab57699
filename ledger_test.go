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

package ledgerlink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/database"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventWait = 2 * time.Second

func newTestLedger(t *testing.T, ds database.IDataSource, id, currency string, routes []config.RouteConfig) *Ledger {
	t.Helper()
	return NewLedger(ds, config.LedgerConfig{
		ID:                   id,
		Currency:             currency,
		EscrowAccount:        "escrow",
		DefaultExpirySeconds: 60,
		SweepIntervalSeconds: 1,
	}, NewStaticRouteTable(routes))
}

func fundAccounts(t *testing.T, ledger *Ledger, balances map[string]int64) {
	t.Helper()
	ctx := context.Background()
	if _, ok := balances["escrow"]; !ok {
		balances["escrow"] = 0
	}
	for accountID, balance := range balances {
		_, err := ledger.CreateAccount(ctx, accountID, balance)
		require.NoError(t, err)
	}
}

func balanceOf(t *testing.T, ledger *Ledger, accountID string) int64 {
	t.Helper()
	acct, err := ledger.GetAccount(context.Background(), model.NewAddress(ledger.Info().ID, accountID))
	require.NoError(t, err)
	return acct.Balance
}

// eventRecorder registers as a listener and collects everything the ledger
// emits to one account.
type eventRecorder struct {
	mu     sync.Mutex
	events []model.LedgerEvent
}

func recordEvents(t *testing.T, ledger *Ledger, accountID string) *eventRecorder {
	t.Helper()
	r := &eventRecorder{}
	ledger.Connect(accountID)
	require.NoError(t, ledger.RegisterEventHandler(accountID, func(event model.LedgerEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
	}))
	return r
}

func (r *eventRecorder) find(match func(model.LedgerEvent) bool) model.LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if match(event) {
			return event
		}
	}
	return nil
}

func (r *eventRecorder) waitFor(t *testing.T, match func(model.LedgerEvent) bool) model.LedgerEvent {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.find(match) != nil
	}, eventWait, 10*time.Millisecond)
	return r.find(match)
}

func optimisticHeader(t *testing.T, source, destination model.Address, amount int64) *model.TransferHeader {
	t.Helper()
	header, err := model.NewTransferHeader("", source, destination, amount, nil, nil, time.Time{})
	require.NoError(t, err)
	return header
}

func conditionalHeader(t *testing.T, source, destination model.Address, amount int64, expiresAt time.Time) *model.TransferHeader {
	t.Helper()
	header, err := model.NewTransferHeader("", source, destination, amount, []byte("cc:0:sha256"), nil, expiresAt)
	require.NoError(t, err)
	return header
}

func sendFrom(t *testing.T, ledger *Ledger, header *model.TransferHeader, sourceAccount string) error {
	t.Helper()
	transfer, err := model.NewForwardedTransfer(header, model.NewAddress(ledger.Info().ID, sourceAccount), "", 0, nil, nil)
	require.NoError(t, err)
	return ledger.Send(context.Background(), transfer)
}

func TestOptimisticTransferSameLedger(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100, "bob": 0})

	alice := model.NewAddress("ledger-one", "alice")
	bob := model.NewAddress("ledger-one", "bob")
	recorder := recordEvents(t, ledger, "bob")

	header := optimisticHeader(t, alice, bob, 25)
	require.NoError(t, sendFrom(t, ledger, header, "alice"))

	assert.Equal(t, int64(75), balanceOf(t, ledger, "alice"))
	assert.Equal(t, int64(25), balanceOf(t, ledger, "bob"))

	event := recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.DirectTransfer)
		return ok
	})
	direct := event.(model.DirectTransfer)
	assert.Equal(t, header.TransactionID, direct.Transfer.Header.TransactionID)
	assert.Equal(t, int64(25), direct.Transfer.Amount)
	assert.Equal(t, bob, direct.Transfer.LocalDestination)
}

func TestConditionalTransferHoldsEscrow(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100, "bob": 0})

	alice := model.NewAddress("ledger-one", "alice")
	bob := model.NewAddress("ledger-one", "bob")
	recorder := recordEvents(t, ledger, "bob")

	header := conditionalHeader(t, alice, bob, 40, time.Now().Add(time.Minute))
	require.NoError(t, sendFrom(t, ledger, header, "alice"))

	// Funds sit in escrow, not with bob.
	assert.Equal(t, int64(60), balanceOf(t, ledger, "alice"))
	assert.Equal(t, int64(40), balanceOf(t, ledger, "escrow"))
	assert.Equal(t, int64(0), balanceOf(t, ledger, "bob"))

	recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.TransferPrepared)
		return ok
	})

	esc, err := ledger.GetEscrow(context.Background(), header.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowPending, esc.Status)
}

func TestFulfillConditionReleasesEscrow(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100, "bob": 0})

	alice := model.NewAddress("ledger-one", "alice")
	bob := model.NewAddress("ledger-one", "bob")
	recorder := recordEvents(t, ledger, "bob")

	header := conditionalHeader(t, alice, bob, 40, time.Now().Add(time.Minute))
	require.NoError(t, sendFrom(t, ledger, header, "alice"))

	proof := []byte("cf:0:proof")
	require.NoError(t, ledger.FulfillCondition(context.Background(), header.TransactionID, proof))

	assert.Equal(t, int64(40), balanceOf(t, ledger, "bob"))
	assert.Equal(t, int64(0), balanceOf(t, ledger, "escrow"))

	event := recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.TransferExecuted)
		return ok
	})
	assert.Equal(t, proof, event.(model.TransferExecuted).Proof)

	// Terminal: a second fulfillment or a rejection must fail.
	err := ledger.FulfillCondition(context.Background(), header.TransactionID, proof)
	assert.True(t, apierror.HasCode(err, apierror.ErrEscrowNotFound))
	err = ledger.RejectTransfer(context.Background(), header.TransactionID, model.ReasonRejectedByReceiver)
	assert.True(t, apierror.HasCode(err, apierror.ErrEscrowNotFound))
}

func TestRejectTransferReturnsEscrow(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100, "bob": 0})

	alice := model.NewAddress("ledger-one", "alice")
	bob := model.NewAddress("ledger-one", "bob")
	recorder := recordEvents(t, ledger, "alice")

	header := conditionalHeader(t, alice, bob, 40, time.Now().Add(time.Minute))
	require.NoError(t, sendFrom(t, ledger, header, "alice"))
	require.NoError(t, ledger.RejectTransfer(context.Background(), header.TransactionID, model.ReasonRejectedByReceiver))

	assert.Equal(t, int64(100), balanceOf(t, ledger, "alice"))
	assert.Equal(t, int64(0), balanceOf(t, ledger, "escrow"))

	event := recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.TransferRejected)
		return ok
	})
	assert.Equal(t, model.ReasonRejectedByReceiver, event.(model.TransferRejected).Reason)
}

func TestExpirySweepTimesOutEscrow(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100, "bob": 0})

	alice := model.NewAddress("ledger-one", "alice")
	bob := model.NewAddress("ledger-one", "bob")
	recorder := recordEvents(t, ledger, "alice")

	header := conditionalHeader(t, alice, bob, 40, time.Now().Add(30*time.Millisecond))
	require.NoError(t, sendFrom(t, ledger, header, "alice"))

	time.Sleep(60 * time.Millisecond)
	ledger.sweepExpiredEscrows(context.Background())

	assert.Equal(t, int64(100), balanceOf(t, ledger, "alice"))
	assert.Equal(t, int64(0), balanceOf(t, ledger, "escrow"))

	event := recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.TransferRejected)
		return ok
	})
	assert.Equal(t, model.ReasonTimeout, event.(model.TransferRejected).Reason)

	esc, err := ledger.GetEscrow(context.Background(), header.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowReversed, esc.Status)
}

func TestSendRejectsWrongLedger(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100})

	header := optimisticHeader(t,
		model.NewAddress("ledger-two", "alice"), model.NewAddress("ledger-two", "bob"), 10)
	transfer, err := model.NewForwardedTransfer(header, model.NewAddress("ledger-two", "alice"), "", 0, nil, nil)
	require.NoError(t, err)

	err = ledger.Send(context.Background(), transfer)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidAddress))
}

func TestSendWithoutRouteFails(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 100})

	header := optimisticHeader(t,
		model.NewAddress("ledger-one", "alice"), model.NewAddress("ledger-two", "bob"), 10)
	err := sendFrom(t, ledger, header, "alice")
	assert.True(t, apierror.HasCode(err, apierror.ErrNoRouteToLedger))

	// Precondition failures leave no partial effect.
	assert.Equal(t, int64(100), balanceOf(t, ledger, "alice"))
}

func TestRegisterEventHandlerRequiresConnection(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)

	err := ledger.RegisterEventHandler("nobody", func(model.LedgerEvent) {})
	assert.True(t, apierror.HasCode(err, apierror.ErrNotConnected))
}

func TestConnectAndDisconnectEvents(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)

	recorder := recordEvents(t, ledger, "alice")
	assert.True(t, ledger.IsConnected("alice"))

	recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.Connected)
		return ok
	})

	ledger.Disconnect("alice")
	assert.False(t, ledger.IsConnected("alice"))
	recorder.waitFor(t, func(e model.LedgerEvent) bool {
		_, ok := e.(model.Disconnected)
		return ok
	})
}

func TestDeliverAfterCloseIsDropped(t *testing.T) {
	conn := newConnection("alice")
	conn.setHandler(func(model.LedgerEvent) {})
	conn.close()

	require.NotPanics(t, func() {
		conn.deliver(model.Connected{Ledger: model.LedgerInfo{ID: "ledger-one"}})
	})
}

func TestConcurrentSendAndDisconnect(t *testing.T) {
	ds := database.NewMemoryDataSource()
	ledger := newTestLedger(t, ds, "ledger-one", "USD", nil)
	fundAccounts(t, ledger, map[string]int64{"alice": 1_000_000, "bob": 0})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ledger.Connect("bob")
			ledger.Disconnect("bob")
		}
	}()

	for i := 0; i < 200; i++ {
		header := optimisticHeader(t,
			model.NewAddress("ledger-one", "alice"), model.NewAddress("ledger-one", "bob"), 1)
		require.NoError(t, sendFrom(t, ledger, header, "alice"))
	}
	<-done

	assert.Equal(t, int64(999_800), balanceOf(t, ledger, "alice"))
	assert.Equal(t, int64(200), balanceOf(t, ledger, "bob"))
}
