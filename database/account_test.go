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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/stretchr/testify/assert"
)

func TestCreateAccount(t *testing.T) {
	d, mock := newTestDatasource(t)

	acct := model.NewAccount("ledger-one", "alice", 500)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("ledger-one", "alice", int64(500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := d.CreateAccount(context.Background(), acct)
	assert.NoError(t, err)
	assert.Equal(t, "alice", created.AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFundsAtomic(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectBegin()
	// Rows are locked in lexicographic account order: alice before bob.
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(500))
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(500))
	mock.ExpectExec("UPDATE accounts SET balance = balance -").
		WithArgs(int64(25), "ledger-one", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts SET balance = balance \\+").
		WithArgs(int64(25), "ledger-one", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := d.TransferFunds(context.Background(), "ledger-one", "alice", "bob", 25)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFundsInsufficient(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(10))
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(500))
	mock.ExpectRollback()

	err := d.TransferFunds(context.Background(), "ledger-one", "alice", "bob", 25)
	assert.True(t, apierror.HasCode(err, apierror.ErrInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFundsUnknownAccount(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectRollback()

	err := d.TransferFunds(context.Background(), "ledger-one", "alice", "ghost", 25)
	assert.True(t, apierror.HasCode(err, apierror.ErrAccountNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
