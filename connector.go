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
	"fmt"
	"sync"
	"time"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/sirupsen/logrus"
)

// routingTimeout bounds the work one ledger event may trigger. Events arrive
// on connection goroutines with no caller deadline to inherit.
const routingTimeout = 30 * time.Second

// Connector holds an account on two or more ledgers and relays payments
// between them. It only ever reacts to ledger events; each event carries
// everything the router needs to decide deliver, forward, or reject.
type Connector struct {
	id      string
	routes  RouteSource
	quoter  RateQuoter
	pending PendingStore

	mu       sync.RWMutex
	clients  map[string]LedgerClient
	accounts map[string]model.Address
}

func NewConnector(id string, routes RouteSource, quoter RateQuoter, pending PendingStore) *Connector {
	if id == "" {
		id = model.GenerateUUIDWithSuffix("con")
	}
	return &Connector{
		id:       id,
		routes:   routes,
		quoter:   quoter,
		pending:  pending,
		clients:  make(map[string]LedgerClient),
		accounts: make(map[string]model.Address),
	}
}

func (c *Connector) ID() string {
	return c.id
}

// AddLedger connects the client and subscribes the router to its events. The
// connector can hold one account per ledger.
func (c *Connector) AddLedger(ctx context.Context, client LedgerClient) error {
	ledgerID := client.Info().ID

	c.mu.Lock()
	if _, exists := c.clients[ledgerID]; exists {
		c.mu.Unlock()
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("connector %s already holds an account on ledger %s", c.id, ledgerID), nil)
	}
	c.clients[ledgerID] = client
	c.accounts[ledgerID] = model.NewAddress(ledgerID, client.AccountID())
	c.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		c.removeLedger(ledgerID)
		return err
	}
	if err := client.RegisterEventHandler(c.handleEvent); err != nil {
		_ = client.Disconnect(ctx)
		c.removeLedger(ledgerID)
		return err
	}
	return nil
}

// RemoveLedger disconnects from the ledger. In-flight transfers that were
// waiting on this connection resolve upstream via escrow timeouts.
func (c *Connector) RemoveLedger(ctx context.Context, ledgerID string) error {
	c.mu.RLock()
	client, ok := c.clients[ledgerID]
	c.mu.RUnlock()
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotConnected,
			fmt.Sprintf("connector %s holds no account on ledger %s", c.id, ledgerID), nil)
	}
	err := client.Disconnect(ctx)
	c.removeLedger(ledgerID)
	return err
}

func (c *Connector) removeLedger(ledgerID string) {
	c.mu.Lock()
	delete(c.clients, ledgerID)
	delete(c.accounts, ledgerID)
	c.mu.Unlock()
}

func (c *Connector) client(ledgerID string) (LedgerClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	client, ok := c.clients[ledgerID]
	return client, ok
}

func (c *Connector) account(ledgerID string) (model.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.accounts[ledgerID]
	return addr, ok
}

// handleEvent is the router's entry point, invoked on the connection's
// dispatch goroutine. The event type switch is exhaustive over the sealed
// event set.
func (c *Connector) handleEvent(event model.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), routingTimeout)
	defer cancel()

	switch ev := event.(type) {
	case model.Connected, model.Disconnected:
		logrus.WithFields(logrus.Fields{
			"connector": c.id,
			"ledger":    event.EventLedger().ID,
		}).Info("ledger connection state changed")
	case model.DirectTransfer:
		c.routeIncoming(ctx, ev.Ledger, ev.Transfer)
	case model.TransferPrepared:
		c.routeIncoming(ctx, ev.Ledger, ev.Transfer)
	case model.TransferExecuted:
		c.propagateExecution(ctx, ev.Ledger, ev.Transfer, ev.Proof)
	case model.TransferRejected:
		c.propagateRejection(ctx, ev.Ledger, ev.Transfer, ev.Reason)
	}
}

// isOriginator reports whether this connector initiated the local movement
// the event describes. The router only acts on payments arriving at the
// connector's account, never on its own outgoing sends.
func (c *Connector) isOriginator(ledgerID string, details model.TransferDetails) bool {
	account, ok := c.account(ledgerID)
	if !ok {
		return false
	}
	return details.LocalSource == account
}

// isRecipient reports whether the local movement lands on the connector's
// account on that ledger.
func (c *Connector) isRecipient(ledgerID string, details model.TransferDetails) bool {
	account, ok := c.account(ledgerID)
	if !ok {
		return false
	}
	return details.LocalDestination == account
}
