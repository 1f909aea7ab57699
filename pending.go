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
	"sync"

	"github.com/ledgerlink/ledgerlink/database"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
)

// PendingStore tracks in-flight transfers the connector has dispatched, keyed
// by transaction ID. An entry must outlive the process that wrote it for
// backward propagation to survive a restart; use the redis or datasource
// implementation in production.
type PendingStore interface {
	// Add upserts the entry for pt.TransactionID.
	Add(ctx context.Context, pt model.PendingTransfer) error
	// Remove deletes the entry; removing an absent id is not an error.
	Remove(ctx context.Context, transactionID string) error
	// Get returns the entry, or nil when no entry exists.
	Get(ctx context.Context, transactionID string) (*model.PendingTransfer, error)
}

type memoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]model.PendingTransfer
}

func NewMemoryPendingStore() PendingStore {
	return &memoryPendingStore{entries: make(map[string]model.PendingTransfer)}
}

func (s *memoryPendingStore) Add(_ context.Context, pt model.PendingTransfer) error {
	if pt.TransactionID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "pending transfer needs a transaction id", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[pt.TransactionID] = pt
	return nil
}

func (s *memoryPendingStore) Remove(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, transactionID)
	return nil
}

func (s *memoryPendingStore) Get(_ context.Context, transactionID string) (*model.PendingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.entries[transactionID]
	if !ok {
		return nil, nil
	}
	entry := pt
	return &entry, nil
}

const pendingKeyPrefix = "ledgerlink:pending:"

type redisPendingStore struct {
	client redis.UniversalClient
}

// NewRedisPendingStore keeps pending entries in redis so another connector
// process can finish what this one started.
func NewRedisPendingStore(client redis.UniversalClient) PendingStore {
	return &redisPendingStore{client: client}
}

func (s *redisPendingStore) Add(ctx context.Context, pt model.PendingTransfer) error {
	if pt.TransactionID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "pending transfer needs a transaction id", nil)
	}
	payload, err := json.Marshal(pt)
	if err != nil {
		return errors.Wrap(err, "failed to marshal pending transfer")
	}
	if err := s.client.Set(ctx, pendingKeyPrefix+pt.TransactionID, payload, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to store pending transfer")
	}
	return nil
}

func (s *redisPendingStore) Remove(ctx context.Context, transactionID string) error {
	if err := s.client.Del(ctx, pendingKeyPrefix+transactionID).Err(); err != nil {
		return errors.Wrap(err, "failed to remove pending transfer")
	}
	return nil
}

func (s *redisPendingStore) Get(ctx context.Context, transactionID string) (*model.PendingTransfer, error) {
	payload, err := s.client.Get(ctx, pendingKeyPrefix+transactionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch pending transfer")
	}
	var pt model.PendingTransfer
	if err := json.Unmarshal(payload, &pt); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal pending transfer")
	}
	return &pt, nil
}

type datasourcePendingStore struct {
	ds database.IDataSource
}

// NewDataSourcePendingStore backs the tracker with the same store that holds
// accounts and escrows, so a postgres deployment gets durable pending state
// without a second system.
func NewDataSourcePendingStore(ds database.IDataSource) PendingStore {
	return &datasourcePendingStore{ds: ds}
}

func (s *datasourcePendingStore) Add(ctx context.Context, pt model.PendingTransfer) error {
	return s.ds.AddPendingTransfer(ctx, pt)
}

func (s *datasourcePendingStore) Remove(ctx context.Context, transactionID string) error {
	return s.ds.RemovePendingTransfer(ctx, transactionID)
}

func (s *datasourcePendingStore) Get(ctx context.Context, transactionID string) (*model.PendingTransfer, error) {
	return s.ds.GetPendingTransfer(ctx, transactionID)
}
