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

	"github.com/ledgerlink/ledgerlink/model"
)

// LedgerClient is the connector's view of one ledger it holds an account on.
// The connector never touches a Ledger directly; an out-of-process transport
// only has to satisfy this interface.
type LedgerClient interface {
	Info() model.LedgerInfo
	AccountID() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	Send(ctx context.Context, transfer model.Transfer) error
	FulfillCondition(ctx context.Context, transactionID string, proof []byte) error
	RejectTransfer(ctx context.Context, transactionID string, reason model.RejectionReason) error
	// RegisterEventHandler attaches the single handler for this connection,
	// replacing any previous one.
	RegisterEventHandler(handler EventHandler) error
}

// InProcessClient connects a connector to a ledger living in the same
// process. It is the transport the simulation and the tests run on.
type InProcessClient struct {
	ledger    *Ledger
	accountID string
}

func NewInProcessClient(ledger *Ledger, accountID string) *InProcessClient {
	return &InProcessClient{ledger: ledger, accountID: accountID}
}

func (c *InProcessClient) Info() model.LedgerInfo {
	return c.ledger.Info()
}

func (c *InProcessClient) AccountID() string {
	return c.accountID
}

func (c *InProcessClient) Connect(_ context.Context) error {
	c.ledger.Connect(c.accountID)
	return nil
}

func (c *InProcessClient) Disconnect(_ context.Context) error {
	c.ledger.Disconnect(c.accountID)
	return nil
}

func (c *InProcessClient) IsConnected() bool {
	return c.ledger.IsConnected(c.accountID)
}

func (c *InProcessClient) Send(ctx context.Context, transfer model.Transfer) error {
	return c.ledger.Send(ctx, transfer)
}

func (c *InProcessClient) FulfillCondition(ctx context.Context, transactionID string, proof []byte) error {
	return c.ledger.FulfillCondition(ctx, transactionID, proof)
}

func (c *InProcessClient) RejectTransfer(ctx context.Context, transactionID string, reason model.RejectionReason) error {
	return c.ledger.RejectTransfer(ctx, transactionID, reason)
}

func (c *InProcessClient) RegisterEventHandler(handler EventHandler) error {
	return c.ledger.RegisterEventHandler(c.accountID, handler)
}
