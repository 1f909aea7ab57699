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
	"fmt"

	"github.com/pkg/errors"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
)

func (d Datasource) CreateAccount(ctx context.Context, acct model.Account) (model.Account, error) {
	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO accounts (ledger_id, account_id, balance, created_at) VALUES ($1, $2, $3, $4)`,
		acct.Address.LedgerID, acct.AccountID, acct.Balance, acct.CreatedAt,
	)
	if err != nil {
		return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "failed to create account", errors.Wrap(err, "insert account"))
	}
	return acct, nil
}

func (d Datasource) GetAccount(ctx context.Context, ledgerID, accountID string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx,
		`SELECT ledger_id, account_id, balance, created_at FROM accounts WHERE ledger_id = $1 AND account_id = $2`,
		ledgerID, accountID,
	)
	acct := model.Account{}
	var rowLedgerID string
	err := row.Scan(&rowLedgerID, &acct.AccountID, &acct.Balance, &acct.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotFound, fmt.Sprintf("account %s not found on ledger %s", accountID, ledgerID), nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to get account", errors.Wrap(err, "select account"))
	}
	acct.Address = model.NewAddress(rowLedgerID, acct.AccountID)
	return &acct, nil
}

// TransferFunds applies the debit and credit inside one transaction, locking
// both rows in deterministic account order so two concurrent transfers on
// the same pair cannot deadlock or interleave partially.
func (d Datasource) TransferFunds(ctx context.Context, ledgerID, sourceID, destinationID string, amount int64) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to begin transfer", errors.Wrap(err, "begin tx"))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := transferFundsTx(ctx, tx, ledgerID, sourceID, destinationID, amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to commit transfer", errors.Wrap(err, "commit tx"))
	}
	return nil
}

func transferFundsTx(ctx context.Context, tx *sql.Tx, ledgerID, sourceID, destinationID string, amount int64) error {
	if amount <= 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "transfer amount must be positive", nil)
	}

	first, second := sourceID, destinationID
	if second < first {
		first, second = second, first
	}

	balances := map[string]int64{}
	for _, accountID := range []string{first, second} {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM accounts WHERE ledger_id = $1 AND account_id = $2 FOR UPDATE`,
			ledgerID, accountID,
		).Scan(&balance)
		if err == sql.ErrNoRows {
			return apierror.NewAPIError(apierror.ErrAccountNotFound, fmt.Sprintf("account %s not found on ledger %s", accountID, ledgerID), nil)
		}
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "failed to lock account", errors.Wrap(err, "lock account"))
		}
		balances[accountID] = balance
	}

	if balances[sourceID] < amount {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds, fmt.Sprintf("insufficient funds in account %s", sourceID), nil)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE ledger_id = $2 AND account_id = $3`,
		amount, ledgerID, sourceID,
	); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to debit source", errors.Wrap(err, "debit"))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE ledger_id = $2 AND account_id = $3`,
		amount, ledgerID, destinationID,
	); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to credit destination", errors.Wrap(err, "credit"))
	}
	return nil
}
