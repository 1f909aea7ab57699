package model

import "time"

// Account is one balance-holding entry in a single ledger. The balance is
// mutated only through the ledger's atomic transfer operation.
type Account struct {
	AccountID string    `json:"account_id"`
	Address   Address   `json:"address"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAccount(ledgerID, accountID string, balance int64) Account {
	return Account{
		AccountID: accountID,
		Address:   NewAddress(ledgerID, accountID),
		Balance:   balance,
		CreatedAt: time.Now(),
	}
}
