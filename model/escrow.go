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

package model

import "time"

type EscrowStatus string

const (
	EscrowPending  EscrowStatus = "PENDING"
	EscrowExecuted EscrowStatus = "EXECUTED"
	EscrowReversed EscrowStatus = "REVERSED"
)

// Escrow is a hold of funds in a dedicated ledger account pending execution
// or reversal. Status transitions are one-way and terminal: PENDING→EXECUTED
// or PENDING→REVERSED, never both.
type Escrow struct {
	EscrowID         string          `json:"escrow_id"`
	LedgerID         string          `json:"ledger_id"`
	Header           *TransferHeader `json:"header"`
	LocalSource      Address         `json:"local_source"`
	EscrowAccount    Address         `json:"escrow_account"`
	LocalDestination Address         `json:"local_destination"`
	Amount           int64           `json:"amount"`
	ExpiresAt        time.Time       `json:"expires_at,omitempty"`
	Status           EscrowStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// EscrowInputs carries everything a ledger needs to initiate a hold.
type EscrowInputs struct {
	Header           *TransferHeader
	LocalSource      Address
	EscrowAccount    Address
	LocalDestination Address
	Amount           int64
	ExpiresAt        time.Time
}

// NewEscrow builds a PENDING escrow from validated inputs.
func NewEscrow(in EscrowInputs) (*Escrow, error) {
	if in.Header == nil {
		return nil, errInvalidHeader("escrow requires a transfer header")
	}
	ledgerID := in.LocalSource.LedgerID
	if in.EscrowAccount.LedgerID != ledgerID || in.LocalDestination.LedgerID != ledgerID {
		return nil, errInvalidAddress(ledgerID, in.EscrowAccount.LedgerID)
	}
	if in.Amount <= 0 {
		return nil, errInvalidHeader("escrow amount must be positive")
	}
	return &Escrow{
		EscrowID:         GenerateUUIDWithSuffix("esc"),
		LedgerID:         ledgerID,
		Header:           in.Header,
		LocalSource:      in.LocalSource,
		EscrowAccount:    in.EscrowAccount,
		LocalDestination: in.LocalDestination,
		Amount:           in.Amount,
		ExpiresAt:        in.ExpiresAt,
		Status:           EscrowPending,
		CreatedAt:        time.Now(),
	}, nil
}

// IsExpired reports whether the escrow carries an expiry that has elapsed.
func (e *Escrow) IsExpired(asOf time.Time) bool {
	return !e.ExpiresAt.IsZero() && !asOf.Before(e.ExpiresAt)
}
