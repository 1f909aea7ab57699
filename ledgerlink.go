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
	"embed"
	"fmt"

	"github.com/ledgerlink/ledgerlink/cache"
	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/database"
	redis_db "github.com/ledgerlink/ledgerlink/internal/redis-db"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Network wires the configured ledgers and the connector together over one
// datasource. It is what the server, the workers, and the API handlers all
// talk to.
type Network struct {
	connector  *Connector
	ledgers    map[string]*Ledger
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
}

// NewNetwork builds the configured topology: one Ledger per ledgers entry,
// an in-process client per connector account, a static route table split
// between the ledgers and the connector, and a redis-backed pending store.
func NewNetwork(db database.IDataSource) (*Network, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	routeCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	routes := NewCachedRouteSource(NewStaticRouteTable(configuration.Routes), routeCache)
	quoter, err := NewFixedRateQuoter(configuration.Rates)
	if err != nil {
		return nil, err
	}

	network := &Network{
		ledgers:    make(map[string]*Ledger),
		queue:      newQueue,
		redis:      redisClient.Client(),
		datasource: db,
	}

	connector := NewConnector(configuration.ConnectorID, routes, quoter, NewRedisPendingStore(redisClient.Client()))
	network.connector = connector

	ctx := context.Background()
	for _, ledgerCfg := range configuration.Ledgers {
		// A ledger routes through the connector accounts that sit on it.
		ledger := NewLedger(db, ledgerCfg, NewStaticRouteTable(localRoutes(configuration, ledgerCfg.ID)))
		ledger.UseQueue(newQueue)
		ledger.UseLock(redisClient.Client())
		network.ledgers[ledgerCfg.ID] = ledger

		if err := ensureEscrowAccount(ctx, ledger); err != nil {
			return nil, err
		}

		if ledgerCfg.ConnectorAccount != "" {
			client := NewInProcessClient(ledger, ledgerCfg.ConnectorAccount)
			if err := connector.AddLedger(ctx, client); err != nil {
				return nil, err
			}
		}
	}

	return network, nil
}

// ensureEscrowAccount provisions the ledger's escrow account on first boot.
func ensureEscrowAccount(ctx context.Context, ledger *Ledger) error {
	_, err := ledger.GetAccount(ctx, ledger.Info().EscrowAccount)
	if apierror.HasCode(err, apierror.ErrAccountNotFound) {
		_, err = ledger.CreateAccount(ctx, ledger.Info().EscrowAccount.AccountID, 0)
	}
	return err
}

// localRoutes filters the routing table down to the hops that leave through
// the given ledger.
func localRoutes(configuration *config.Configuration, ledgerID string) []config.RouteConfig {
	var entries []config.RouteConfig
	for _, route := range configuration.Routes {
		if route.HopLedger == ledgerID {
			entries = append(entries, route)
		}
	}
	return entries
}

func (n *Network) Connector() *Connector {
	return n.connector
}

// Ledger returns the ledger with the given id.
func (n *Network) Ledger(ledgerID string) (*Ledger, error) {
	ledger, ok := n.ledgers[ledgerID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound,
			fmt.Sprintf("ledger %s is not configured", ledgerID), nil)
	}
	return ledger, nil
}

// Ledgers lists the configured ledgers' metadata.
func (n *Network) Ledgers() []model.LedgerInfo {
	infos := make([]model.LedgerInfo, 0, len(n.ledgers))
	for _, ledger := range n.ledgers {
		infos = append(infos, ledger.Info())
	}
	return infos
}

// StartExpirySweeps starts the per-ledger expiry sweeps. They stop when ctx
// is done.
func (n *Network) StartExpirySweeps(ctx context.Context) {
	for _, ledger := range n.ledgers {
		ledger.StartExpirySweep(ctx)
	}
}

// ExpireEscrow routes an expiry task to its ledger.
func (n *Network) ExpireEscrow(ctx context.Context, ledgerID, transactionID string) error {
	ledger, err := n.Ledger(ledgerID)
	if err != nil {
		return err
	}
	return ledger.ExpireEscrow(ctx, transactionID)
}
