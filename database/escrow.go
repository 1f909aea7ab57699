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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
)

const escrowColumns = `transaction_id, escrow_id, ledger_id, header, local_source, escrow_account, local_destination, amount, expires_at, status, created_at`

// InitiateEscrow moves funds from the local source into the escrow account
// and inserts the PENDING record in one transaction, so a crash can never
// leave held funds without a matching escrow row.
func (d Datasource) InitiateEscrow(ctx context.Context, esc *model.Escrow) (*model.Escrow, error) {
	headerJSON, err := json.Marshal(esc.Header)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to serialize header", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to begin escrow", errors.Wrap(err, "begin tx"))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := transferFundsTx(ctx, tx, esc.LedgerID, esc.LocalSource.AccountID, esc.EscrowAccount.AccountID, esc.Amount); err != nil {
		return nil, err
	}

	var expiresAt interface{}
	if !esc.ExpiresAt.IsZero() {
		expiresAt = esc.ExpiresAt
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO escrows (`+escrowColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		esc.Header.TransactionID, esc.EscrowID, esc.LedgerID, headerJSON,
		esc.LocalSource.AccountID, esc.EscrowAccount.AccountID, esc.LocalDestination.AccountID,
		esc.Amount, expiresAt, esc.Status, esc.CreatedAt,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to record escrow", errors.Wrap(err, "insert escrow"))
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to commit escrow", errors.Wrap(err, "commit tx"))
	}
	return esc, nil
}

// ExecuteEscrow releases a PENDING escrow to its local destination. The
// status transition and the balance movement commit together or not at all.
func (d Datasource) ExecuteEscrow(ctx context.Context, ledgerID, transactionID string) (*model.Escrow, error) {
	return d.settleEscrow(ctx, ledgerID, transactionID, model.EscrowExecuted)
}

// ReverseEscrow returns a PENDING conditional escrow to its local source.
// Optimistic transfers never hold an escrow, so reversal refuses them.
func (d Datasource) ReverseEscrow(ctx context.Context, ledgerID, transactionID string) (*model.Escrow, error) {
	return d.settleEscrow(ctx, ledgerID, transactionID, model.EscrowReversed)
}

func (d Datasource) settleEscrow(ctx context.Context, ledgerID, transactionID string, target model.EscrowStatus) (*model.Escrow, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to begin settlement", errors.Wrap(err, "begin tx"))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE ledger_id = $1 AND transaction_id = $2 AND status = $3 FOR UPDATE`,
		ledgerID, transactionID, model.EscrowPending,
	)
	esc, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrEscrowNotFound, fmt.Sprintf("no pending escrow for transaction %s on ledger %s", transactionID, ledgerID), nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to load escrow", errors.Wrap(err, "select escrow"))
	}

	var creditAccount string
	switch target {
	case model.EscrowExecuted:
		creditAccount = esc.LocalDestination.AccountID
	case model.EscrowReversed:
		if esc.Header.IsOptimistic() {
			return nil, apierror.NewAPIError(apierror.ErrEscrowNotFound, fmt.Sprintf("transaction %s is optimistic and holds no reversible escrow", transactionID), nil)
		}
		creditAccount = esc.LocalSource.AccountID
	default:
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("invalid escrow target status %s", target), nil)
	}

	if err := transferFundsTx(ctx, tx, ledgerID, esc.EscrowAccount.AccountID, creditAccount, esc.Amount); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE escrows SET status = $1 WHERE ledger_id = $2 AND transaction_id = $3`,
		target, ledgerID, transactionID,
	); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to update escrow status", errors.Wrap(err, "update escrow"))
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to commit settlement", errors.Wrap(err, "commit tx"))
	}
	esc.Status = target
	return esc, nil
}

func (d Datasource) GetEscrow(ctx context.Context, ledgerID, transactionID string) (*model.Escrow, error) {
	row := d.Conn.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE ledger_id = $1 AND transaction_id = $2`,
		ledgerID, transactionID,
	)
	esc, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrEscrowNotFound, fmt.Sprintf("no escrow for transaction %s on ledger %s", transactionID, ledgerID), nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to load escrow", errors.Wrap(err, "select escrow"))
	}
	return esc, nil
}

func (d Datasource) ExpiredEscrows(ctx context.Context, ledgerID string, asOf time.Time) ([]*model.Escrow, error) {
	rows, err := d.Conn.QueryContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE ledger_id = $1 AND status = $2 AND expires_at IS NOT NULL AND expires_at <= $3`,
		ledgerID, model.EscrowPending, asOf,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to list expired escrows", errors.Wrap(err, "select escrows"))
	}
	defer func() {
		_ = rows.Close()
	}()

	var escrows []*model.Escrow
	for rows.Next() {
		esc, err := scanEscrow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan escrow", errors.Wrap(err, "scan escrow"))
		}
		escrows = append(escrows, esc)
	}
	return escrows, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEscrow(row rowScanner) (*model.Escrow, error) {
	esc := &model.Escrow{}
	var headerJSON []byte
	var localSource, escrowAccount, localDestination string
	var expiresAt sql.NullTime

	err := row.Scan(
		new(string), // transaction_id, recovered from the header below
		&esc.EscrowID, &esc.LedgerID, &headerJSON,
		&localSource, &escrowAccount, &localDestination,
		&esc.Amount, &expiresAt, &esc.Status, &esc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(headerJSON, &esc.Header); err != nil {
		return nil, err
	}
	esc.LocalSource = model.NewAddress(esc.LedgerID, localSource)
	esc.EscrowAccount = model.NewAddress(esc.LedgerID, escrowAccount)
	esc.LocalDestination = model.NewAddress(esc.LedgerID, localDestination)
	if expiresAt.Valid {
		esc.ExpiresAt = expiresAt.Time
	}
	return esc, nil
}
