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
	"fmt"
	"sync"
	"time"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
)

// MemoryDataSource is the in-memory reference store. Every method runs under
// one mutex, which makes the all-or-nothing guarantees trivial. It holds no
// real funds safely: a restart loses every escrow and pending transfer.
type MemoryDataSource struct {
	mu       sync.Mutex
	accounts map[string]map[string]*model.Account // ledgerID -> accountID
	escrows  map[string]map[string]*model.Escrow  // ledgerID -> transactionID
	pendings map[string]model.PendingTransfer     // transactionID
}

func NewMemoryDataSource() *MemoryDataSource {
	return &MemoryDataSource{
		accounts: make(map[string]map[string]*model.Account),
		escrows:  make(map[string]map[string]*model.Escrow),
		pendings: make(map[string]model.PendingTransfer),
	}
}

func (m *MemoryDataSource) CreateAccount(_ context.Context, acct model.Account) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ledgerID := acct.Address.LedgerID
	if m.accounts[ledgerID] == nil {
		m.accounts[ledgerID] = make(map[string]*model.Account)
	}
	if _, exists := m.accounts[ledgerID][acct.AccountID]; exists {
		return model.Account{}, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("account %s already exists on ledger %s", acct.AccountID, ledgerID), nil)
	}
	stored := acct
	m.accounts[ledgerID][acct.AccountID] = &stored
	return acct, nil
}

func (m *MemoryDataSource) GetAccount(_ context.Context, ledgerID, accountID string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.lookupAccount(ledgerID, accountID)
	if acct == nil {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotFound, fmt.Sprintf("account %s not found on ledger %s", accountID, ledgerID), nil)
	}
	copied := *acct
	return &copied, nil
}

func (m *MemoryDataSource) TransferFunds(_ context.Context, ledgerID, sourceID, destinationID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transferLocked(ledgerID, sourceID, destinationID, amount)
}

// transferLocked is the single balance-mutation path; callers must hold mu.
func (m *MemoryDataSource) transferLocked(ledgerID, sourceID, destinationID string, amount int64) error {
	if amount <= 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "transfer amount must be positive", nil)
	}
	source := m.lookupAccount(ledgerID, sourceID)
	destination := m.lookupAccount(ledgerID, destinationID)
	if source == nil {
		return apierror.NewAPIError(apierror.ErrAccountNotFound, fmt.Sprintf("account %s not found on ledger %s", sourceID, ledgerID), nil)
	}
	if destination == nil {
		return apierror.NewAPIError(apierror.ErrAccountNotFound, fmt.Sprintf("account %s not found on ledger %s", destinationID, ledgerID), nil)
	}
	if source.Balance < amount {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds, fmt.Sprintf("insufficient funds in account %s", sourceID), nil)
	}
	source.Balance -= amount
	destination.Balance += amount
	return nil
}

func (m *MemoryDataSource) lookupAccount(ledgerID, accountID string) *model.Account {
	ledger := m.accounts[ledgerID]
	if ledger == nil {
		return nil
	}
	return ledger[accountID]
}

func (m *MemoryDataSource) InitiateEscrow(_ context.Context, esc *model.Escrow) (*model.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transferLocked(esc.LedgerID, esc.LocalSource.AccountID, esc.EscrowAccount.AccountID, esc.Amount); err != nil {
		return nil, err
	}
	if m.escrows[esc.LedgerID] == nil {
		m.escrows[esc.LedgerID] = make(map[string]*model.Escrow)
	}
	stored := *esc
	m.escrows[esc.LedgerID][esc.Header.TransactionID] = &stored
	return esc, nil
}

func (m *MemoryDataSource) ExecuteEscrow(_ context.Context, ledgerID, transactionID string) (*model.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	esc, err := m.pendingEscrowLocked(ledgerID, transactionID)
	if err != nil {
		return nil, err
	}
	if err := m.transferLocked(ledgerID, esc.EscrowAccount.AccountID, esc.LocalDestination.AccountID, esc.Amount); err != nil {
		return nil, err
	}
	esc.Status = model.EscrowExecuted
	copied := *esc
	return &copied, nil
}

func (m *MemoryDataSource) ReverseEscrow(_ context.Context, ledgerID, transactionID string) (*model.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	esc, err := m.pendingEscrowLocked(ledgerID, transactionID)
	if err != nil {
		return nil, err
	}
	if esc.Header.IsOptimistic() {
		return nil, apierror.NewAPIError(apierror.ErrEscrowNotFound, fmt.Sprintf("transaction %s is optimistic and holds no reversible escrow", transactionID), nil)
	}
	if err := m.transferLocked(ledgerID, esc.EscrowAccount.AccountID, esc.LocalSource.AccountID, esc.Amount); err != nil {
		return nil, err
	}
	esc.Status = model.EscrowReversed
	copied := *esc
	return &copied, nil
}

func (m *MemoryDataSource) pendingEscrowLocked(ledgerID, transactionID string) (*model.Escrow, error) {
	ledger := m.escrows[ledgerID]
	if ledger == nil || ledger[transactionID] == nil || ledger[transactionID].Status != model.EscrowPending {
		return nil, apierror.NewAPIError(apierror.ErrEscrowNotFound, fmt.Sprintf("no pending escrow for transaction %s on ledger %s", transactionID, ledgerID), nil)
	}
	return ledger[transactionID], nil
}

func (m *MemoryDataSource) GetEscrow(_ context.Context, ledgerID, transactionID string) (*model.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ledger := m.escrows[ledgerID]
	if ledger == nil || ledger[transactionID] == nil {
		return nil, apierror.NewAPIError(apierror.ErrEscrowNotFound, fmt.Sprintf("no escrow for transaction %s on ledger %s", transactionID, ledgerID), nil)
	}
	copied := *ledger[transactionID]
	return &copied, nil
}

func (m *MemoryDataSource) ExpiredEscrows(_ context.Context, ledgerID string, asOf time.Time) ([]*model.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*model.Escrow
	for _, esc := range m.escrows[ledgerID] {
		if esc.Status == model.EscrowPending && esc.IsExpired(asOf) {
			copied := *esc
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

func (m *MemoryDataSource) AddPendingTransfer(_ context.Context, pt model.PendingTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendings[pt.TransactionID] = pt
	return nil
}

func (m *MemoryDataSource) RemovePendingTransfer(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendings, transactionID)
	return nil
}

func (m *MemoryDataSource) GetPendingTransfer(_ context.Context, transactionID string) (*model.PendingTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt, ok := m.pendings[transactionID]
	if !ok {
		return nil, nil
	}
	return &pt, nil
}
