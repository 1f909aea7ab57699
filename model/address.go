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
	"fmt"
	"strings"
)

// Address globally identifies one account in one ledger.
type Address struct {
	LedgerID  string `json:"ledger_id"`
	AccountID string `json:"account_id"`
}

func NewAddress(ledgerID, accountID string) Address {
	return Address{LedgerID: ledgerID, AccountID: accountID}
}

// ParseAddress parses the "ledgerID/accountID" form produced by String.
func ParseAddress(s string) (Address, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("invalid address %q, expected ledger/account", s)
	}
	return Address{LedgerID: parts[0], AccountID: parts[1]}, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s", a.LedgerID, a.AccountID)
}

func (a Address) IsZero() bool {
	return a.LedgerID == "" && a.AccountID == ""
}
