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

package ledgerlink

import (
	"context"
	"fmt"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
)

// CreateAccount opens an account on this ledger with an opening balance.
func (l *Ledger) CreateAccount(ctx context.Context, accountID string, balance int64) (model.Account, error) {
	if accountID == "" {
		accountID = model.GenerateUUIDWithSuffix("acc")
	}
	return l.datasource.CreateAccount(ctx, model.NewAccount(l.info.ID, accountID, balance))
}

// GetAccount looks an account up by address; the address must be on this
// ledger.
func (l *Ledger) GetAccount(ctx context.Context, address model.Address) (*model.Account, error) {
	if address.LedgerID != l.info.ID {
		return nil, apierror.NewAPIError(apierror.ErrInvalidAddress,
			fmt.Sprintf("address %s is not on ledger %s", address, l.info.ID), nil)
	}
	return l.datasource.GetAccount(ctx, l.info.ID, address.AccountID)
}
