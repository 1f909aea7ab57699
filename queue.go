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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ledgerlink/ledgerlink/config"
	redis_db "github.com/ledgerlink/ledgerlink/internal/redis-db"
)

// Queue hands escrow expiries and webhook deliveries to asynq workers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// EscrowExpiryPayload identifies the escrow an expiry task should reject.
type EscrowExpiryPayload struct {
	LedgerID      string `json:"ledger_id"`
	TransactionID string `json:"transaction_id"`
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueEscrowExpiry schedules a task to fire when the escrow's hold elapses.
// The task ID is the transaction ID, so re-preparing the same transaction
// never stacks a second timer.
func (q *Queue) queueEscrowExpiry(ledgerID, transactionID string, expiresAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(EscrowExpiryPayload{LedgerID: ledgerID, TransactionID: transactionID})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(transactionID),
		asynq.Queue(cfg.Queue.EscrowExpiryQueue),
		asynq.ProcessIn(time.Until(expiresAt)),
	}
	task := asynq.NewTask(cfg.Queue.EscrowExpiryQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued escrow expiry: %+v", transactionID)
	return nil
}

// queueWebhook spreads webhook deliveries across the configured number of
// queues, hashed by transaction ID so one payment's notifications stay in
// order.
func (q *Queue) queueWebhook(transactionID string, webhook NewWebhook) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	if cfg.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}
	queueIndex := hashTransactionID(transactionID) % cfg.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cfg.Queue.WebhookQueue, queueIndex+1)

	task := asynq.NewTask(queueName, payload, asynq.Queue(queueName), asynq.MaxRetry(5))
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

func hashTransactionID(transactionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(transactionID))
	return int(h.Sum32())
}
