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
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/ledgerlink/ledgerlink/model"
)

// CreateAccount opens an account on a ledger.
type CreateAccount struct {
	LedgerID  string `json:"ledger_id"`
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.LedgerID, validation.Required),
		validation.Field(&a.Balance, validation.Min(0)),
	)
}

// SendTransfer initiates a payment from a local account toward any
// destination address. Condition and expiry make it conditional.
type SendTransfer struct {
	TransactionID string `json:"transaction_id"`
	Source        string `json:"source"`
	Destination   string `json:"destination"`
	Amount        int64  `json:"amount"`
	Condition     string `json:"condition"`
	ExpiresAt     string `json:"expires_at"`
	Data          []byte `json:"data"`
}

func (s *SendTransfer) ValidateSendTransfer() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Source, validation.Required),
		validation.Field(&s.Destination, validation.Required),
		validation.Field(&s.Amount, validation.Required, validation.Min(1)),
		validation.Field(&s.ExpiresAt, validation.By(func(interface{}) error {
			if s.ExpiresAt == "" {
				return nil
			}
			if _, err := time.Parse(time.RFC3339, s.ExpiresAt); err != nil {
				return errors.New("please format expires_at as RFC3339 (e.g., 2026-09-01T15:28:03+00:00)")
			}
			return nil
		})),
	)
}

// ToTransferHeader builds the immutable header carried through every hop.
func (s *SendTransfer) ToTransferHeader() (*model.TransferHeader, error) {
	source, err := model.ParseAddress(s.Source)
	if err != nil {
		return nil, err
	}
	destination, err := model.ParseAddress(s.Destination)
	if err != nil {
		return nil, err
	}
	var condition []byte
	if s.Condition != "" {
		condition = []byte(s.Condition)
	}
	var expiresAt time.Time
	if s.ExpiresAt != "" {
		expiresAt, err = time.Parse(time.RFC3339, s.ExpiresAt)
		if err != nil {
			return nil, err
		}
	}
	return model.NewTransferHeader(s.TransactionID, source, destination, s.Amount, condition, s.Data, expiresAt)
}

// SourceAddress returns the parsed local source.
func (s *SendTransfer) SourceAddress() (model.Address, error) {
	return model.ParseAddress(s.Source)
}

// FulfillTransfer releases a held transfer with its proof.
type FulfillTransfer struct {
	LedgerID string `json:"ledger_id"`
	Proof    string `json:"proof"`
}

func (f *FulfillTransfer) ValidateFulfillTransfer() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.LedgerID, validation.Required),
		validation.Field(&f.Proof, validation.Required),
	)
}

// RejectTransfer unwinds a held transfer.
type RejectTransfer struct {
	LedgerID string `json:"ledger_id"`
	Reason   string `json:"reason"`
}

func (r *RejectTransfer) ValidateRejectTransfer() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.LedgerID, validation.Required),
		validation.Field(&r.Reason, validation.In(
			string(model.ReasonTimeout),
			string(model.ReasonRejectedByReceiver),
			string(model.ReasonNoRouteToLedger),
			"")),
	)
}

// RejectionReason defaults to REJECTED_BY_RECEIVER when the caller names
// none.
func (r *RejectTransfer) RejectionReason() model.RejectionReason {
	if r.Reason == "" {
		return model.ReasonRejectedByReceiver
	}
	return model.RejectionReason(r.Reason)
}
