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

// LedgerInfo is the metadata a ledger attaches to every event it emits.
type LedgerInfo struct {
	ID            string  `json:"id"`
	Currency      string  `json:"currency"`
	EscrowAccount Address `json:"escrow_account"`
}

type RejectionReason string

const (
	ReasonTimeout            RejectionReason = "TIMEOUT"
	ReasonRejectedByReceiver RejectionReason = "REJECTED_BY_RECEIVER"
	ReasonNoRouteToLedger    RejectionReason = "NO_ROUTE_TO_LEDGER"
)

// LedgerEvent is the closed set of events a ledger delivers to registered
// connections. The unexported marker keeps the set sealed so the router's
// type switch stays exhaustive.
type LedgerEvent interface {
	ledgerEvent()
	EventLedger() LedgerInfo
}

// TransferDetails is the payload shared by every transfer-related event:
// the original header plus the local movement on the emitting ledger.
type TransferDetails struct {
	Header           *TransferHeader `json:"header"`
	LocalSource      Address         `json:"local_source"`
	LocalDestination Address         `json:"local_destination"`
	Amount           int64           `json:"amount"`
}

type Connected struct {
	Ledger LedgerInfo `json:"ledger"`
}

type Disconnected struct {
	Ledger LedgerInfo `json:"ledger"`
}

// DirectTransfer reports an optimistic transfer that already moved funds.
type DirectTransfer struct {
	Ledger   LedgerInfo      `json:"ledger"`
	Transfer TransferDetails `json:"transfer"`
}

// TransferPrepared reports a conditional transfer held in escrow.
type TransferPrepared struct {
	Ledger   LedgerInfo      `json:"ledger"`
	Transfer TransferDetails `json:"transfer"`
}

// TransferExecuted reports an escrow released to its local destination.
type TransferExecuted struct {
	Ledger   LedgerInfo      `json:"ledger"`
	Transfer TransferDetails `json:"transfer"`
	Proof    []byte          `json:"proof,omitempty"`
}

// TransferRejected reports an escrow returned to its local source.
type TransferRejected struct {
	Ledger   LedgerInfo      `json:"ledger"`
	Transfer TransferDetails `json:"transfer"`
	Reason   RejectionReason `json:"reason"`
}

func (Connected) ledgerEvent()        {}
func (Disconnected) ledgerEvent()     {}
func (DirectTransfer) ledgerEvent()   {}
func (TransferPrepared) ledgerEvent() {}
func (TransferExecuted) ledgerEvent() {}
func (TransferRejected) ledgerEvent() {}

func (e Connected) EventLedger() LedgerInfo        { return e.Ledger }
func (e Disconnected) EventLedger() LedgerInfo     { return e.Ledger }
func (e DirectTransfer) EventLedger() LedgerInfo   { return e.Ledger }
func (e TransferPrepared) EventLedger() LedgerInfo { return e.Ledger }
func (e TransferExecuted) EventLedger() LedgerInfo { return e.Ledger }
func (e TransferRejected) EventLedger() LedgerInfo { return e.Ledger }
