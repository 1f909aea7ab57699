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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/sirupsen/logrus"
)

// backwardRetryMaxElapsed caps the exponential backoff on backward
// fulfillment and rejection calls. Past it the upstream hold is left to
// resolve by its own expiry.
const backwardRetryMaxElapsed = 15 * time.Second

// routeIncoming decides what to do with a payment that landed on the
// connector's account: deliver when the destination ledger is live, else
// forward along a route, else reject so the upstream chain unwinds. The
// precedence is fixed; a live connection always beats a route.
func (c *Connector) routeIncoming(ctx context.Context, origin model.LedgerInfo, details model.TransferDetails) {
	if c.isOriginator(origin.ID, details) {
		return
	}
	if !c.isRecipient(origin.ID, details) {
		return
	}

	destination := details.Header.Destination
	if client, ok := c.client(destination.LedgerID); ok && client.IsConnected() {
		c.deliverPayment(ctx, origin, details, client)
		return
	}

	rctx, cancel := collaboratorContext(ctx, details.Header)
	route, err := c.routes.BestHop(rctx, destination, details.Amount)
	cancel()
	if err != nil {
		logrus.Errorf("route lookup for %s failed: %v", destination, err)
	}
	if route != nil {
		c.forwardPayment(ctx, origin, details, route)
		return
	}

	c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonNoRouteToLedger)
}

// deliverPayment sends the payment onto the destination ledger with the
// final recipient already resolved. The pending entry is recorded before the
// send so a crash between the two leaves a correlatable entry, not a stuck
// hold.
func (c *Connector) deliverPayment(ctx context.Context, origin model.LedgerInfo, details model.TransferDetails, client LedgerClient) {
	destInfo := client.Info()
	amount, err := c.quoteAmount(ctx, details, origin.Currency, destInfo.Currency)
	if err != nil {
		logrus.Errorf("cannot deliver %s: %v", details.Header.TransactionID, err)
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonRejectedByReceiver)
		return
	}

	localSource, ok := c.account(destInfo.ID)
	if !ok {
		logrus.Errorf("cannot deliver %s: no connector account on ledger %s", details.Header.TransactionID, destInfo.ID)
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonNoRouteToLedger)
		return
	}
	transfer, err := model.NewDeliveredTransfer(details.Header, localSource, details.Header.Destination, amount, details.Header.Data, nil)
	if err != nil {
		logrus.Errorf("cannot build delivery for %s: %v", details.Header.TransactionID, err)
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonRejectedByReceiver)
		return
	}

	c.dispatch(ctx, origin, details, transfer, client)
}

// forwardPayment hands the payment to the next-hop ledger named by the
// route; that ledger resolves its own connector account for the remaining
// hops.
func (c *Connector) forwardPayment(ctx context.Context, origin model.LedgerInfo, details model.TransferDetails, route *model.Route) {
	nextLedgerID := route.SourceAddress.LedgerID
	client, ok := c.client(nextLedgerID)
	if !ok || !client.IsConnected() {
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonNoRouteToLedger)
		return
	}

	nextInfo := client.Info()
	amount, err := c.quoteAmount(ctx, details, origin.Currency, nextInfo.Currency)
	if err != nil {
		logrus.Errorf("cannot forward %s: %v", details.Header.TransactionID, err)
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonRejectedByReceiver)
		return
	}

	localSource, ok := c.account(nextLedgerID)
	if !ok {
		logrus.Errorf("cannot forward %s: no connector account on ledger %s", details.Header.TransactionID, nextLedgerID)
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonNoRouteToLedger)
		return
	}
	transfer, err := model.NewForwardedTransfer(details.Header, localSource, nextLedgerID, amount, details.Header.Data, nil)
	if err != nil {
		logrus.Errorf("cannot build forward for %s: %v", details.Header.TransactionID, err)
		c.rejectPayment(ctx, origin.ID, details.Header.TransactionID, model.ReasonRejectedByReceiver)
		return
	}

	c.dispatch(ctx, origin, details, transfer, client)
}

// quoteAmount converts the incoming amount into the next ledger's currency.
// A quote that is not strictly positive cannot fund the next hop.
func (c *Connector) quoteAmount(ctx context.Context, details model.TransferDetails, fromCurrency, toCurrency string) (int64, error) {
	qctx, cancel := collaboratorContext(ctx, details.Header)
	defer cancel()
	amount, err := c.quoter.Quote(qctx, details.Amount, fromCurrency, toCurrency)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, apierror.NewAPIError(apierror.ErrInsufficientFunds,
			fmt.Sprintf("quote for %s yielded non-positive amount %d", details.Header.TransactionID, amount), nil)
	}
	return amount, nil
}

// dispatch records the pending entry and sends the next-hop transfer. A
// failed send rejects upstream and clears the entry again.
func (c *Connector) dispatch(ctx context.Context, origin model.LedgerInfo, details model.TransferDetails, transfer model.Transfer, client LedgerClient) {
	transactionID := details.Header.TransactionID
	entry := model.PendingTransfer{
		TransactionID:       transactionID,
		Header:              details.Header,
		TargetLedgerID:      transfer.TargetLedgerID(),
		OriginatingLedgerID: origin.ID,
		CreatedAt:           time.Now(),
	}
	if err := c.pending.Add(ctx, entry); err != nil {
		logrus.Errorf("cannot record pending transfer %s: %v", transactionID, err)
		c.rejectPayment(ctx, origin.ID, transactionID, model.ReasonRejectedByReceiver)
		return
	}

	if err := client.Send(ctx, transfer); err != nil {
		logrus.Errorf("next-hop send for %s failed: %v", transactionID, err)
		c.rejectPayment(ctx, origin.ID, transactionID, model.ReasonRejectedByReceiver)
		return
	}

	// Optimistic transfers settle at the next hop immediately; nothing will
	// ever come back for them, so the entry is done the moment the send
	// lands.
	if details.Header.IsOptimistic() {
		if err := c.pending.Remove(ctx, transactionID); err != nil {
			logrus.Warnf("failed to clear pending transfer %s: %v", transactionID, err)
		}
	}
}

// rejectPayment unwinds the hold on the originating ledger and clears the
// tracker entry for the transaction. Removal is unconditional; rejection is a
// terminal outcome whether or not an entry was ever recorded.
func (c *Connector) rejectPayment(ctx context.Context, originLedgerID, transactionID string, reason model.RejectionReason) {
	defer func() {
		if err := c.pending.Remove(ctx, transactionID); err != nil {
			logrus.Warnf("failed to clear pending transfer %s: %v", transactionID, err)
		}
	}()

	client, ok := c.client(originLedgerID)
	if !ok || !client.IsConnected() {
		// The upstream escrow reverses itself on expiry.
		logrus.WithFields(logrus.Fields{
			"connector":   c.id,
			"ledger":      originLedgerID,
			"transaction": transactionID,
		}).Warn("originating ledger not connected, leaving escrow to time out")
		return
	}

	err := c.retryBackward(ctx, func() error {
		return client.RejectTransfer(ctx, transactionID, reason)
	})
	if err != nil {
		logrus.Errorf("backward rejection of %s on %s failed: %v", transactionID, originLedgerID, err)
	}
}

// propagateExecution carries a downstream fulfillment backward: the proof
// that released the next hop's escrow releases the originating ledger's too.
func (c *Connector) propagateExecution(ctx context.Context, ledger model.LedgerInfo, details model.TransferDetails, proof []byte) {
	if !c.isOriginator(ledger.ID, details) {
		return
	}
	transactionID := details.Header.TransactionID

	entry, err := c.pending.Get(ctx, transactionID)
	if err != nil {
		logrus.Errorf("pending lookup for %s failed: %v", transactionID, err)
		return
	}
	if entry == nil {
		logOrphanedTransaction(c.id, ledger.ID, transactionID, "executed")
		return
	}

	client, ok := c.client(entry.OriginatingLedgerID)
	if !ok || !client.IsConnected() {
		logrus.Errorf("cannot propagate fulfillment of %s: ledger %s not connected", transactionID, entry.OriginatingLedgerID)
		return
	}

	err = c.retryBackward(ctx, func() error {
		return client.FulfillCondition(ctx, transactionID, proof)
	})
	if err != nil {
		logrus.Errorf("backward fulfillment of %s on %s failed: %v", transactionID, entry.OriginatingLedgerID, err)
		return
	}
	if err := c.pending.Remove(ctx, transactionID); err != nil {
		logrus.Warnf("failed to clear pending transfer %s: %v", transactionID, err)
	}
}

// propagateRejection carries a downstream rejection backward so the
// originating ledger's escrow unwinds before it would have timed out.
func (c *Connector) propagateRejection(ctx context.Context, ledger model.LedgerInfo, details model.TransferDetails, _ model.RejectionReason) {
	if !c.isOriginator(ledger.ID, details) {
		return
	}
	transactionID := details.Header.TransactionID

	entry, err := c.pending.Get(ctx, transactionID)
	if err != nil {
		logrus.Errorf("pending lookup for %s failed: %v", transactionID, err)
		return
	}
	if entry == nil {
		logOrphanedTransaction(c.id, ledger.ID, transactionID, "rejected")
		return
	}

	c.rejectPayment(ctx, entry.OriginatingLedgerID, transactionID, model.ReasonRejectedByReceiver)
}

func (c *Connector) retryBackward(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = backwardRetryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		// A hold that no longer exists will not appear on retry.
		if apierror.HasCode(err, apierror.ErrEscrowNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// An orphaned event means the pending entry vanished before its terminal
// outcome arrived. That is a durability gap to close in the store, not
// something to retry around.
func logOrphanedTransaction(connectorID, ledgerID, transactionID, outcome string) {
	logrus.WithFields(logrus.Fields{
		"connector":   connectorID,
		"ledger":      ledgerID,
		"transaction": transactionID,
		"outcome":     outcome,
	}).Error("ORPHANED_TRANSACTION: no originating ledger recorded for terminal event")
}
