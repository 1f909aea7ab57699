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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	model2 "github.com/ledgerlink/ledgerlink/api/model"
	"github.com/ledgerlink/ledgerlink/model"
)

func (a Api) CreateAccount(c *gin.Context) {
	var newAccount model2.CreateAccount
	if err := c.ShouldBindJSON(&newAccount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := newAccount.ValidateCreateAccount(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := a.network.Ledger(newAccount.LedgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	account, err := ledger.CreateAccount(c.Request.Context(), newAccount.AccountID, newAccount.Balance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (a Api) GetAccount(c *gin.Context) {
	ledgerID, _ := c.Params.Get("ledger_id")
	accountID, _ := c.Params.Get("account_id")

	ledger, err := a.network.Ledger(ledgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	account, err := ledger.GetAccount(c.Request.Context(), model.NewAddress(ledgerID, accountID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}
