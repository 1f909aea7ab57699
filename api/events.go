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
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventEnvelope is one frame on the event feed.
type eventEnvelope struct {
	Type  string            `json:"type"`
	Event model.LedgerEvent `json:"event"`
}

func eventTypeName(event model.LedgerEvent) string {
	switch event.(type) {
	case model.Connected:
		return "connected"
	case model.Disconnected:
		return "disconnected"
	case model.DirectTransfer:
		return "direct_transfer"
	case model.TransferPrepared:
		return "transfer_prepared"
	case model.TransferExecuted:
		return "transfer_executed"
	case model.TransferRejected:
		return "transfer_rejected"
	default:
		return "unknown"
	}
}

// StreamEvents upgrades to a websocket and relays the account's ledger
// events until the peer goes away. This is how an out-of-process connector
// listens without linking the core.
func (a Api) StreamEvents(c *gin.Context) {
	ledgerID, _ := c.Params.Get("ledger_id")
	accountID, _ := c.Params.Get("account_id")

	ledger, err := a.network.Ledger(ledgerID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}

	var writeMu sync.Mutex
	ledger.Connect(accountID)
	err = ledger.RegisterEventHandler(accountID, func(event model.LedgerEvent) {
		frame, err := json.Marshal(eventEnvelope{Type: eventTypeName(event), Event: event})
		if err != nil {
			logrus.Errorf("failed to encode ledger event: %v", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logrus.Debugf("event feed write to %s/%s failed: %v", ledgerID, accountID, err)
		}
	})
	if err != nil {
		respondError(c, err)
		_ = conn.Close()
		return
	}

	// Drain control frames; a read error means the peer is gone.
	go func() {
		defer func() {
			ledger.Disconnect(accountID)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
