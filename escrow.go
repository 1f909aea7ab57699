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
	"time"

	"github.com/ledgerlink/ledgerlink/model"
	"github.com/sirupsen/logrus"
)

// initiateEscrow moves the funds into the ledger's escrow account and records
// the PENDING hold, keyed by the header's transaction ID. Transfers without
// their own expiry get the ledger's default so every hold eventually
// resolves.
func (l *Ledger) initiateEscrow(ctx context.Context, details model.TransferDetails) (*model.Escrow, error) {
	ctx, span := tracer.Start(ctx, "Initiating escrow")
	defer span.End()

	expiresAt := details.Header.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(l.defaultExpiry)
	}
	esc, err := model.NewEscrow(model.EscrowInputs{
		Header:           details.Header,
		LocalSource:      details.LocalSource,
		EscrowAccount:    l.info.EscrowAccount,
		LocalDestination: details.LocalDestination,
		Amount:           details.Amount,
		ExpiresAt:        expiresAt,
	})
	if err != nil {
		return nil, err
	}

	esc, err = l.datasource.InitiateEscrow(ctx, esc)
	if err != nil {
		return nil, logAndRecordError(span, "initiate escrow error: ", err)
	}

	if l.queue != nil {
		if err := l.queue.queueEscrowExpiry(l.info.ID, esc.Header.TransactionID, expiresAt); err != nil {
			logrus.Warnf("failed to schedule escrow expiry for %s, sweep will reap it: %v",
				esc.Header.TransactionID, err)
		}
	}
	return esc, nil
}

func (l *Ledger) executeEscrow(ctx context.Context, transactionID string) (*model.Escrow, error) {
	ctx, span := tracer.Start(ctx, "Executing escrow")
	defer span.End()
	return l.datasource.ExecuteEscrow(ctx, l.info.ID, transactionID)
}

func (l *Ledger) reverseEscrow(ctx context.Context, transactionID string) (*model.Escrow, error) {
	ctx, span := tracer.Start(ctx, "Reversing escrow")
	defer span.End()
	return l.datasource.ReverseEscrow(ctx, l.info.ID, transactionID)
}

// GetEscrow returns the escrow recorded for transactionID, whatever its
// status.
func (l *Ledger) GetEscrow(ctx context.Context, transactionID string) (*model.Escrow, error) {
	return l.datasource.GetEscrow(ctx, l.info.ID, transactionID)
}

// ExpireEscrow rejects the escrow for transactionID with TIMEOUT when its
// hold has elapsed. The asynq expiry task lands here; a hold that already
// resolved is left alone.
func (l *Ledger) ExpireEscrow(ctx context.Context, transactionID string) error {
	esc, err := l.datasource.GetEscrow(ctx, l.info.ID, transactionID)
	if err != nil {
		return err
	}
	if esc.Status != model.EscrowPending || !esc.IsExpired(time.Now()) {
		return nil
	}
	return l.RejectTransfer(ctx, transactionID, model.ReasonTimeout)
}

// StartExpirySweep reaps expired PENDING escrows on a ticker until ctx is
// done. It backstops the scheduled expiry tasks; both funnel into
// RejectTransfer with TIMEOUT, so a hold reaped by one path is invisible to
// the other.
func (l *Ledger) StartExpirySweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweepExpiredEscrows(ctx)
			}
		}
	}()
}

func (l *Ledger) sweepExpiredEscrows(ctx context.Context) {
	expired, err := l.datasource.ExpiredEscrows(ctx, l.info.ID, time.Now())
	if err != nil {
		logrus.Errorf("expiry sweep on ledger %s failed: %v", l.info.ID, err)
		return
	}
	for _, esc := range expired {
		if err := l.RejectTransfer(ctx, esc.Header.TransactionID, model.ReasonTimeout); err != nil {
			// Lost the race against an execute or an expiry task.
			logrus.Debugf("sweep skipped escrow %s: %v", esc.Header.TransactionID, err)
		}
	}
}
