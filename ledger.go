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

	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/database"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	redlock "github.com/ledgerlink/ledgerlink/internal/lock"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("Ledger core")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// Ledger is one connected ledger: an account book, an escrow book, and the
// set of live connections listening to its events.
type Ledger struct {
	info          model.LedgerInfo
	datasource    database.IDataSource
	routes        RouteSource
	queue         *Queue
	redis         redis.UniversalClient
	defaultExpiry time.Duration
	sweepInterval time.Duration

	mu          sync.Mutex
	connections map[string]*connection
}

// NewLedger builds a ledger over the shared datasource. The route source
// answers which locally connected connector account can carry a payment whose
// final destination is elsewhere; pass nil for a leaf ledger that never
// originates multi-hop sends.
func NewLedger(db database.IDataSource, cfg config.LedgerConfig, routes RouteSource) *Ledger {
	return &Ledger{
		info: model.LedgerInfo{
			ID:            cfg.ID,
			Currency:      cfg.Currency,
			EscrowAccount: model.NewAddress(cfg.ID, cfg.EscrowAccount),
		},
		datasource:    db,
		routes:        routes,
		defaultExpiry: time.Duration(cfg.DefaultExpirySeconds) * time.Second,
		sweepInterval: time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		connections:   make(map[string]*connection),
	}
}

// UseQueue makes the ledger schedule escrow expiries and webhook deliveries
// through asynq. Without it only the in-process sweep reaps expired holds.
func (l *Ledger) UseQueue(q *Queue) {
	l.queue = q
}

// UseLock makes sends serialize on a redis lock per source account, so
// several processes serving the same ledger cannot race a balance.
func (l *Ledger) UseLock(client redis.UniversalClient) {
	l.redis = client
}

// acquireLock takes the per-source-account lock when a redis client is
// configured. Single-process deployments run without one.
func (l *Ledger) acquireLock(ctx context.Context, source model.Address) (*redlock.Locker, error) {
	if l.redis == nil {
		return nil, nil
	}
	locker := redlock.NewLocker(l.redis, source.String(), model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, 30*time.Second, 10*time.Second); err != nil {
		return nil, err
	}
	return locker, nil
}

func (l *Ledger) Info() model.LedgerInfo {
	return l.info
}

// Connect registers accountID as a listener and emits a Connected event to
// it. Connecting an already connected account is a no-op.
func (l *Ledger) Connect(accountID string) {
	l.mu.Lock()
	conn, ok := l.connections[accountID]
	if !ok {
		conn = newConnection(accountID)
		l.connections[accountID] = conn
	}
	l.mu.Unlock()
	if !ok {
		conn.deliver(model.Connected{Ledger: l.info})
	}
}

// Disconnect emits a Disconnected event and tears the connection down after
// its queued events drain.
func (l *Ledger) Disconnect(accountID string) {
	l.mu.Lock()
	conn, ok := l.connections[accountID]
	delete(l.connections, accountID)
	l.mu.Unlock()
	if !ok {
		return
	}
	conn.deliver(model.Disconnected{Ledger: l.info})
	conn.close()
}

func (l *Ledger) IsConnected(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.connections[accountID]
	return ok
}

// RegisterEventHandler attaches the handler for accountID's connection,
// replacing any previous one.
func (l *Ledger) RegisterEventHandler(accountID string, handler EventHandler) error {
	l.mu.Lock()
	conn, ok := l.connections[accountID]
	l.mu.Unlock()
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotConnected,
			fmt.Sprintf("account %s is not connected to ledger %s", accountID, l.info.ID), nil)
	}
	conn.setHandler(handler)
	return nil
}

// Send moves or escrows funds on this ledger. The local destination is the
// transfer's own when it carries one, the header's destination when this
// ledger is final, and otherwise the connector account the route source
// names. Optimistic transfers settle immediately; conditional ones are held
// in escrow until fulfilled or rejected.
func (l *Ledger) Send(ctx context.Context, transfer model.Transfer) error {
	ctx, span := tracer.Start(ctx, "Sending transfer")
	defer span.End()

	header := transfer.Header()
	if header == nil {
		return apierror.NewAPIError(apierror.ErrInvalidHeader, "transfer header is required", nil)
	}
	if transfer.TargetLedgerID() != l.info.ID {
		return apierror.NewAPIError(apierror.ErrInvalidAddress,
			fmt.Sprintf("transfer targets ledger %s, not %s", transfer.TargetLedgerID(), l.info.ID), nil)
	}
	source := transfer.LocalSource()
	if source.LedgerID != l.info.ID {
		return apierror.NewAPIError(apierror.ErrInvalidAddress,
			fmt.Sprintf("source %s is not on ledger %s", source, l.info.ID), nil)
	}

	locker, err := l.acquireLock(ctx, source)
	if err != nil {
		return logAndRecordError(span, "lock acquisition error: ", err)
	}
	if locker != nil {
		defer func() {
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.Error("failed to release lock", err)
			}
		}()
	}

	destination, amount, err := l.resolveDestination(ctx, transfer)
	if err != nil {
		return logAndRecordError(span, "resolve destination error: ", err)
	}
	if amount <= 0 {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds,
			fmt.Sprintf("transfer amount %d is not positive", amount), nil)
	}

	details := model.TransferDetails{
		Header:           header,
		LocalSource:      source,
		LocalDestination: destination,
		Amount:           amount,
	}

	if header.IsOptimistic() {
		if err := l.datasource.TransferFunds(ctx, l.info.ID, source.AccountID, destination.AccountID, amount); err != nil {
			return logAndRecordError(span, "direct transfer error: ", err)
		}
		l.emit(model.DirectTransfer{Ledger: l.info, Transfer: details}, source.AccountID, destination.AccountID)
		return nil
	}

	if _, err := l.initiateEscrow(ctx, details); err != nil {
		return logAndRecordError(span, "initiate escrow error: ", err)
	}
	l.emit(model.TransferPrepared{Ledger: l.info, Transfer: details}, source.AccountID, destination.AccountID)
	return nil
}

func (l *Ledger) resolveDestination(ctx context.Context, transfer model.Transfer) (model.Address, int64, error) {
	if delivered, ok := transfer.(*model.DeliveredTransfer); ok {
		return delivered.LocalDestination(), transfer.Amount(), nil
	}

	header := transfer.Header()
	if l.IsFinalDestination(transfer) {
		amount := transfer.Amount()
		if amount == 0 {
			amount = header.DestinationAmount
		}
		return header.Destination, amount, nil
	}

	if l.routes == nil {
		return model.Address{}, 0, apierror.NewAPIError(apierror.ErrNoRouteToLedger,
			fmt.Sprintf("ledger %s has no route source for destination %s", l.info.ID, header.Destination), nil)
	}
	rctx, cancel := collaboratorContext(ctx, header)
	defer cancel()
	route, err := l.routes.BestHop(rctx, header.Destination, header.DestinationAmount)
	if err != nil {
		return model.Address{}, 0, err
	}
	if route == nil || route.SourceAddress.LedgerID != l.info.ID {
		return model.Address{}, 0, apierror.NewAPIError(apierror.ErrNoRouteToLedger,
			fmt.Sprintf("no connector on ledger %s can reach %s", l.info.ID, header.Destination.LedgerID), nil)
	}
	return route.SourceAddress, route.SourceAmountFor(header.DestinationAmount), nil
}

// IsFinalDestination reports whether the transfer's recipient lives on this
// ledger.
func (l *Ledger) IsFinalDestination(transfer model.Transfer) bool {
	return transfer.Header().Destination.LedgerID == l.info.ID
}

// FulfillCondition releases the escrow held for transactionID to its local
// destination and reports the execution, carrying the proof bytes through.
// Verifying the proof against the condition is the caller's concern.
func (l *Ledger) FulfillCondition(ctx context.Context, transactionID string, proof []byte) error {
	ctx, span := tracer.Start(ctx, "Fulfilling condition")
	defer span.End()

	esc, err := l.executeEscrow(ctx, transactionID)
	if err != nil {
		return logAndRecordError(span, "execute escrow error: ", err)
	}
	l.emit(model.TransferExecuted{
		Ledger:   l.info,
		Transfer: escrowDetails(esc),
		Proof:    proof,
	}, esc.LocalSource.AccountID, esc.LocalDestination.AccountID)
	return nil
}

// RejectTransfer returns the escrow held for transactionID to its local
// source and reports the rejection. Timeout and explicit rejection share this
// path; only the reason differs.
func (l *Ledger) RejectTransfer(ctx context.Context, transactionID string, reason model.RejectionReason) error {
	ctx, span := tracer.Start(ctx, "Rejecting transfer")
	defer span.End()

	esc, err := l.reverseEscrow(ctx, transactionID)
	if err != nil {
		return logAndRecordError(span, "reverse escrow error: ", err)
	}
	l.emit(model.TransferRejected{
		Ledger:   l.info,
		Transfer: escrowDetails(esc),
		Reason:   reason,
	}, esc.LocalSource.AccountID, esc.LocalDestination.AccountID)
	return nil
}

func escrowDetails(esc *model.Escrow) model.TransferDetails {
	return model.TransferDetails{
		Header:           esc.Header,
		LocalSource:      esc.LocalSource,
		LocalDestination: esc.LocalDestination,
		Amount:           esc.Amount,
	}
}

// emit fans the event out to the connections registered on the given
// accounts, once per connection even when source and destination share a
// listener.
func (l *Ledger) emit(event model.LedgerEvent, accountIDs ...string) {
	l.mu.Lock()
	seen := make(map[*connection]struct{}, len(accountIDs))
	targets := make([]*connection, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		conn, ok := l.connections[accountID]
		if !ok {
			continue
		}
		if _, dup := seen[conn]; dup {
			continue
		}
		seen[conn] = struct{}{}
		targets = append(targets, conn)
	}
	l.mu.Unlock()

	for _, conn := range targets {
		conn.deliver(event)
	}
	l.queueEventWebhook(event)
}

func (l *Ledger) queueEventWebhook(event model.LedgerEvent) {
	if l.queue == nil {
		return
	}
	var transactionID string
	switch ev := event.(type) {
	case model.DirectTransfer:
		transactionID = ev.Transfer.Header.TransactionID
	case model.TransferPrepared:
		transactionID = ev.Transfer.Header.TransactionID
	case model.TransferExecuted:
		transactionID = ev.Transfer.Header.TransactionID
	case model.TransferRejected:
		transactionID = ev.Transfer.Header.TransactionID
	default:
		transactionID = l.info.ID
	}
	webhook := NewWebhook{Event: webhookEventName(event), Payload: event}
	if err := l.queue.queueWebhook(transactionID, webhook); err != nil {
		logrus.Warnf("failed to queue webhook for %s: %v", webhookEventName(event), err)
	}
}
