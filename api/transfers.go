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

// SendTransfer initiates a payment on the source's ledger. The response
// carries the transaction id the caller needs for fulfillment or rejection.
func (a Api) SendTransfer(c *gin.Context) {
	var newTransfer model2.SendTransfer
	if err := c.ShouldBindJSON(&newTransfer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := newTransfer.ValidateSendTransfer(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	header, err := newTransfer.ToTransferHeader()
	if err != nil {
		respondError(c, err)
		return
	}
	source, err := newTransfer.SourceAddress()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := a.network.Ledger(source.LedgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	transfer, err := model.NewForwardedTransfer(header, source, "", 0, newTransfer.Data, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ledger.Send(c.Request.Context(), transfer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"transaction_id": header.TransactionID,
		"optimistic":     header.IsOptimistic(),
	})
}

func (a Api) FulfillTransfer(c *gin.Context) {
	transactionID, _ := c.Params.Get("transaction_id")

	var fulfill model2.FulfillTransfer
	if err := c.ShouldBindJSON(&fulfill); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fulfill.ValidateFulfillTransfer(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := a.network.Ledger(fulfill.LedgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ledger.FulfillCondition(c.Request.Context(), transactionID, []byte(fulfill.Proof)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": transactionID, "status": string(model.EscrowExecuted)})
}

func (a Api) RejectTransfer(c *gin.Context) {
	transactionID, _ := c.Params.Get("transaction_id")

	var reject model2.RejectTransfer
	if err := c.ShouldBindJSON(&reject); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := reject.ValidateRejectTransfer(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := a.network.Ledger(reject.LedgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ledger.RejectTransfer(c.Request.Context(), transactionID, reject.RejectionReason()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": transactionID, "status": string(model.EscrowReversed)})
}

func (a Api) GetEscrow(c *gin.Context) {
	ledgerID, _ := c.Params.Get("ledger_id")
	transactionID, _ := c.Params.Get("transaction_id")

	ledger, err := a.network.Ledger(ledgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	esc, err := ledger.GetEscrow(c.Request.Context(), transactionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, esc)
}
