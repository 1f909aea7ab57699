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
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEscrowRow(t *testing.T, condition []byte, expiresAt time.Time) *sqlmock.Rows {
	t.Helper()
	header, err := model.NewTransferHeader("txn_1",
		model.NewAddress("ledger-one", "alice"), model.NewAddress("ledger-one", "bob"),
		25, condition, nil, expiresAt)
	require.NoError(t, err)
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	var expiry interface{}
	if !expiresAt.IsZero() {
		expiry = expiresAt
	}
	return sqlmock.NewRows([]string{
		"transaction_id", "escrow_id", "ledger_id", "header", "local_source",
		"escrow_account", "local_destination", "amount", "expires_at", "status", "created_at",
	}).AddRow("txn_1", "esc_1", "ledger-one", headerJSON, "alice", "escrow", "bob", 25, expiry, "PENDING", time.Now())
}

func TestExecuteEscrow(t *testing.T) {
	d, mock := newTestDatasource(t)
	expiry := time.Now().Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM escrows").
		WithArgs("ledger-one", "txn_1", "PENDING").
		WillReturnRows(testEscrowRow(t, []byte("cond"), expiry))
	// Funds move from the escrow account to bob, locked in account order.
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(500))
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("ledger-one", "escrow").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(25))
	mock.ExpectExec("UPDATE accounts SET balance = balance -").
		WithArgs(int64(25), "ledger-one", "escrow").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts SET balance = balance \\+").
		WithArgs(int64(25), "ledger-one", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE escrows SET status").
		WithArgs("EXECUTED", "ledger-one", "txn_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	esc, err := d.ExecuteEscrow(context.Background(), "ledger-one", "txn_1")
	require.NoError(t, err)
	assert.Equal(t, model.EscrowExecuted, esc.Status)
	assert.Equal(t, int64(25), esc.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteEscrowNotFound(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM escrows").
		WithArgs("ledger-one", "txn_missing", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}))
	mock.ExpectRollback()

	_, err := d.ExecuteEscrow(context.Background(), "ledger-one", "txn_missing")
	assert.True(t, apierror.HasCode(err, apierror.ErrEscrowNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseEscrowRefusesOptimistic(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM escrows").
		WithArgs("ledger-one", "txn_1", "PENDING").
		WillReturnRows(testEscrowRow(t, nil, time.Time{}))
	mock.ExpectRollback()

	_, err := d.ReverseEscrow(context.Background(), "ledger-one", "txn_1")
	assert.True(t, apierror.HasCode(err, apierror.ErrEscrowNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
