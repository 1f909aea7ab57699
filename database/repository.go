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
	"time"

	"github.com/ledgerlink/ledgerlink/model"
)

type account interface {
	CreateAccount(ctx context.Context, acct model.Account) (model.Account, error)
	GetAccount(ctx context.Context, ledgerID, accountID string) (*model.Account, error)
	// TransferFunds debits source and credits destination as a single
	// all-or-nothing update. It fails without side effects on an unknown
	// account or when the debit would drive the source negative.
	TransferFunds(ctx context.Context, ledgerID, sourceID, destinationID string, amount int64) error
}

type escrow interface {
	// InitiateEscrow moves funds into the escrow account and records the
	// PENDING escrow atomically.
	InitiateEscrow(ctx context.Context, esc *model.Escrow) (*model.Escrow, error)
	// ExecuteEscrow releases a PENDING escrow to its local destination and
	// marks it EXECUTED, atomically. A missing or non-PENDING escrow fails
	// with ESCROW_NOT_FOUND.
	ExecuteEscrow(ctx context.Context, ledgerID, transactionID string) (*model.Escrow, error)
	// ReverseEscrow returns a PENDING conditional escrow to its local source
	// and marks it REVERSED, atomically.
	ReverseEscrow(ctx context.Context, ledgerID, transactionID string) (*model.Escrow, error)
	GetEscrow(ctx context.Context, ledgerID, transactionID string) (*model.Escrow, error)
	// ExpiredEscrows lists PENDING escrows whose expiry has elapsed as of the
	// given instant.
	ExpiredEscrows(ctx context.Context, ledgerID string, asOf time.Time) ([]*model.Escrow, error)
}

type pending interface {
	AddPendingTransfer(ctx context.Context, pt model.PendingTransfer) error
	RemovePendingTransfer(ctx context.Context, transactionID string) error
	GetPendingTransfer(ctx context.Context, transactionID string) (*model.PendingTransfer, error)
}

// IDataSource is the store behind every ledger and connector. A production
// deployment must durably persist every escrow and pending transfer before
// acknowledging the operation that created it; only the postgres
// implementation gives that guarantee.
type IDataSource interface {
	account
	escrow
	pending
}
