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
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/model"
)

func webhookTestConfig(redisAddr, webhookURL string) *config.Configuration {
	cnf := &config.Configuration{
		Redis: config.RedisConfig{Dns: redisAddr},
		Queue: config.QueueConfig{
			EscrowExpiryQueue: "test:escrow-expiry",
			WebhookQueue:      "test:webhook",
			NumberOfQueues:    2,
		},
	}
	cnf.Notification.Webhook.Url = webhookURL
	return cnf
}

func TestSendWebhook(t *testing.T) {
	config.MockConfig(webhookTestConfig("localhost:6379", "http://localhost:5001/hooks"))

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "http://localhost:5001/hooks",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"status": "received"}))

	err := SendWebhook(NewWebhook{
		Event:   "transfer.executed",
		Payload: map[string]string{"transaction_id": "txn_123"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSendWebhookSkipsWhenUnconfigured(t *testing.T) {
	config.MockConfig(webhookTestConfig("localhost:6379", ""))

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	err := SendWebhook(NewWebhook{Event: "transfer.direct", Payload: nil})
	assert.NoError(t, err)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestQueueWebhookEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	config.MockConfig(webhookTestConfig(mr.Addr(), "http://localhost:5001/hooks"))

	queue := NewQueue(webhookTestConfig(mr.Addr(), "http://localhost:5001/hooks"))
	err := queue.queueWebhook("txn_123", NewWebhook{
		Event:   "transfer.prepared",
		Payload: map[string]string{"transaction_id": "txn_123"},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}

func TestQueueWebhookSkipsWhenUnconfigured(t *testing.T) {
	mr := miniredis.RunT(t)
	config.MockConfig(webhookTestConfig(mr.Addr(), ""))

	queue := NewQueue(webhookTestConfig(mr.Addr(), ""))
	err := queue.queueWebhook("txn_456", NewWebhook{Event: "transfer.direct"})
	assert.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestWebhookEventName(t *testing.T) {
	info := model.LedgerInfo{ID: "ledger-one", Currency: "USD"}

	assert.Equal(t, "transfer.direct", webhookEventName(model.DirectTransfer{Ledger: info}))
	assert.Equal(t, "transfer.prepared", webhookEventName(model.TransferPrepared{Ledger: info}))
	assert.Equal(t, "transfer.executed", webhookEventName(model.TransferExecuted{Ledger: info}))
	assert.Equal(t, "transfer.rejected", webhookEventName(model.TransferRejected{Ledger: info}))
	assert.Equal(t, "ledger.connected", webhookEventName(model.Connected{Ledger: info}))
	assert.Equal(t, "ledger.disconnected", webhookEventName(model.Disconnected{Ledger: info}))
}
