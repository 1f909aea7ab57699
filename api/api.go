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
	ledgerlink "github.com/ledgerlink/ledgerlink"
	"github.com/ledgerlink/ledgerlink/api/middleware"
	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
)

type Api struct {
	network *ledgerlink.Network
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/ledgers", a.GetAllLedgers)
	router.GET("/ledgers/:ledger_id", a.GetLedger)

	router.POST("/accounts", a.CreateAccount)
	router.GET("/ledgers/:ledger_id/accounts/:account_id", a.GetAccount)

	router.POST("/transfers", a.SendTransfer)
	router.POST("/transfers/:transaction_id/fulfill", a.FulfillTransfer)
	router.POST("/transfers/:transaction_id/reject", a.RejectTransfer)
	router.GET("/ledgers/:ledger_id/escrows/:transaction_id", a.GetEscrow)

	router.GET("/ledgers/:ledger_id/accounts/:account_id/events", a.StreamEvents)
	return a.router
}

func NewAPI(network *ledgerlink.Network) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{network: network, router: r}
}

// respondError maps a domain error to its HTTP status.
func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}

func (a Api) GetAllLedgers(c *gin.Context) {
	c.JSON(http.StatusOK, a.network.Ledgers())
}

func (a Api) GetLedger(c *gin.Context) {
	ledgerID, passed := c.Params.Get("ledger_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ledger_id is required. pass id in the route /:ledger_id"})
		return
	}
	ledger, err := a.network.Ledger(ledgerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger.Info())
}
