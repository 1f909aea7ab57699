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
	"encoding/json"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/internal/notification"
	"github.com/ledgerlink/ledgerlink/internal/request"
	"github.com/ledgerlink/ledgerlink/model"
)

// NewWebhook is the envelope delivered to the configured webhook endpoint.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// webhookEventName maps a ledger event to its webhook event string.
func webhookEventName(event model.LedgerEvent) string {
	switch event.(type) {
	case model.DirectTransfer:
		return "transfer.direct"
	case model.TransferPrepared:
		return "transfer.prepared"
	case model.TransferExecuted:
		return "transfer.executed"
	case model.TransferRejected:
		return "transfer.rejected"
	case model.Connected:
		return "ledger.connected"
	case model.Disconnected:
		return "ledger.disconnected"
	default:
		return "transfer.unknown"
	}
}

// SendWebhook delivers the notification to the configured endpoint. Non-2XX
// responses are logged, not retried here; asynq owns the retry policy.
func SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := request.ToJsonReq(&newWebhook)
	if err != nil {
		log.Println("Error marshaling webhook payload:", err)
		return err
	}

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		notification.NotifyError(err)
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("webhook delivery failed with status code: %d", resp.StatusCode)
	}
	return nil
}

// ProcessWebhookTask is the asynq handler for queued webhook deliveries.
func ProcessWebhookTask(_ context.Context, task *asynq.Task) error {
	var webhook NewWebhook
	if err := json.Unmarshal(task.Payload(), &webhook); err != nil {
		return err
	}
	return SendWebhook(webhook)
}
