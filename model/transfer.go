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

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// TransferHeader is created once per interledger transaction and carried
// unchanged through every hop. Condition and expiry are either both present
// (conditional mode) or both absent (optimistic mode).
type TransferHeader struct {
	TransactionID     string    `json:"transaction_id"`
	Source            Address   `json:"source"`
	Destination       Address   `json:"destination"`
	DestinationAmount int64     `json:"destination_amount"`
	Condition         []byte    `json:"condition,omitempty"`
	Data              []byte    `json:"data,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
}

// NewTransferHeader validates and builds a header. An empty transactionID is
// replaced with a generated one.
func NewTransferHeader(transactionID string, source, destination Address, destinationAmount int64, condition []byte, data []byte, expiresAt time.Time) (*TransferHeader, error) {
	if transactionID == "" {
		transactionID = GenerateUUIDWithSuffix("txn")
	}
	h := &TransferHeader{
		TransactionID:     transactionID,
		Source:            source,
		Destination:       destination,
		DestinationAmount: destinationAmount,
		Condition:         condition,
		Data:              data,
		ExpiresAt:         expiresAt,
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *TransferHeader) validate() error {
	err := validation.ValidateStruct(h,
		validation.Field(&h.TransactionID, validation.Required),
		validation.Field(&h.DestinationAmount, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return errInvalidHeader(err.Error())
	}
	if h.Source.IsZero() || h.Destination.IsZero() {
		return errInvalidHeader("source and destination addresses are required")
	}
	hasCondition := len(h.Condition) > 0
	hasExpiry := !h.ExpiresAt.IsZero()
	if hasCondition != hasExpiry {
		return errInvalidHeader("condition and expiry must both be present or both be absent")
	}
	return nil
}

// IsOptimistic reports whether the transfer carries neither condition nor
// expiry, meaning funds move immediately with no hold.
func (h *TransferHeader) IsOptimistic() bool {
	return len(h.Condition) == 0 && h.ExpiresAt.IsZero()
}

// Transfer is the capability handed to a ledger's Send. The two concrete
// variants differ in how much of the next hop the connector has resolved.
type Transfer interface {
	Header() *TransferHeader
	LocalSource() Address
	Amount() int64
	Data() []byte
	NoteToSelf() []byte
	// TargetLedgerID is the ledger this transfer is to be sent on.
	TargetLedgerID() string
}

type transferCommon struct {
	TransferHeader *TransferHeader `json:"header"`
	Source         Address         `json:"local_source"`
	TransferAmount int64           `json:"amount"`
	Payload        []byte          `json:"data,omitempty"`
	Note           []byte          `json:"note_to_self,omitempty"`
}

func (t transferCommon) Header() *TransferHeader { return t.TransferHeader }
func (t transferCommon) LocalSource() Address    { return t.Source }
func (t transferCommon) Amount() int64           { return t.TransferAmount }
func (t transferCommon) Data() []byte            { return t.Payload }
func (t transferCommon) NoteToSelf() []byte      { return t.Note }

// DeliveredTransfer is used when the connector owns an account on the final
// recipient's ledger: the local destination is already resolved.
type DeliveredTransfer struct {
	transferCommon
	Destination         Address `json:"local_destination"`
	DestinationLedgerID string  `json:"destination_ledger_id"`
}

func NewDeliveredTransfer(header *TransferHeader, localSource, localDestination Address, amount int64, data, note []byte) (*DeliveredTransfer, error) {
	if header == nil {
		return nil, errInvalidHeader("transfer header is required")
	}
	if localSource.LedgerID != localDestination.LedgerID {
		return nil, errInvalidAddress(localSource.LedgerID, localDestination.LedgerID)
	}
	return &DeliveredTransfer{
		transferCommon: transferCommon{
			TransferHeader: header,
			Source:         localSource,
			TransferAmount: amount,
			Payload:        data,
			Note:           note,
		},
		Destination:         localDestination,
		DestinationLedgerID: localDestination.LedgerID,
	}, nil
}

func (t *DeliveredTransfer) LocalDestination() Address { return t.Destination }
func (t *DeliveredTransfer) TargetLedgerID() string    { return t.DestinationLedgerID }

// ForwardedTransfer names only the next-hop ledger; that ledger determines
// its own destination and escrow account for the connector.
type ForwardedTransfer struct {
	transferCommon
	NextLedgerID string `json:"next_ledger_id"`
}

func NewForwardedTransfer(header *TransferHeader, localSource Address, nextLedgerID string, amount int64, data, note []byte) (*ForwardedTransfer, error) {
	if header == nil {
		return nil, errInvalidHeader("transfer header is required")
	}
	if nextLedgerID == "" {
		nextLedgerID = localSource.LedgerID
	}
	if localSource.LedgerID != nextLedgerID {
		return nil, errInvalidAddress(localSource.LedgerID, nextLedgerID)
	}
	return &ForwardedTransfer{
		transferCommon: transferCommon{
			TransferHeader: header,
			Source:         localSource,
			TransferAmount: amount,
			Payload:        data,
			Note:           note,
		},
		NextLedgerID: nextLedgerID,
	}, nil
}

func (t *ForwardedTransfer) TargetLedgerID() string { return t.NextLedgerID }

// PendingTransfer correlates an in-flight transaction at one connector hop
// with the ledger that must be told the eventual outcome.
type PendingTransfer struct {
	TransactionID       string          `json:"transaction_id"`
	Header              *TransferHeader `json:"header"`
	TargetLedgerID      string          `json:"target_ledger_id"`
	OriginatingLedgerID string          `json:"originating_ledger_id"`
	CreatedAt           time.Time       `json:"created_at"`
}
