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
	"fmt"
	"time"

	"github.com/ledgerlink/ledgerlink/cache"
	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RouteSource answers where a payment toward destination should go next.
// Implementations decide their own vantage: a ledger's source returns
// connector accounts on that ledger, a connector's source returns connector
// accounts on next-hop ledgers. A nil route with a nil error means no route
// exists; that is a routing outcome, not a failure.
type RouteSource interface {
	BestHop(ctx context.Context, destination model.Address, amount int64) (*model.Route, error)
}

// RateQuoter converts an amount between the currencies of two connected
// ledgers. A quote that comes back non-positive means the payment cannot be
// carried at this size.
type RateQuoter interface {
	Quote(ctx context.Context, sourceAmount int64, sourceCurrency, destinationCurrency string) (int64, error)
}

// StaticRouteTable serves routes from the configured routing entries. It is
// the reference RouteSource for deployments whose topology is known up front.
type StaticRouteTable struct {
	hops map[string]model.Address
}

func NewStaticRouteTable(entries []config.RouteConfig) *StaticRouteTable {
	hops := make(map[string]model.Address, len(entries))
	for _, entry := range entries {
		hops[entry.DestinationLedger] = model.NewAddress(entry.HopLedger, entry.HopAccount)
	}
	return &StaticRouteTable{hops: hops}
}

func (t *StaticRouteTable) BestHop(_ context.Context, destination model.Address, _ int64) (*model.Route, error) {
	hop, ok := t.hops[destination.LedgerID]
	if !ok {
		return nil, nil
	}
	return &model.Route{
		SourceAddress:      hop,
		DestinationAddress: destination,
	}, nil
}

const routeCacheTTL = 30 * time.Second

// CachedRouteSource fronts a RouteSource with the shared cache. Route lookups
// are read-heavy and topology changes slowly, so a short TTL is safe.
type CachedRouteSource struct {
	source RouteSource
	cache  cache.Cache
}

func NewCachedRouteSource(source RouteSource, c cache.Cache) *CachedRouteSource {
	return &CachedRouteSource{source: source, cache: c}
}

func (s *CachedRouteSource) BestHop(ctx context.Context, destination model.Address, amount int64) (*model.Route, error) {
	key := fmt.Sprintf("route:%s", destination.LedgerID)
	var cached model.Route
	if err := s.cache.Get(ctx, key, &cached); err == nil && !cached.SourceAddress.IsZero() {
		cached.DestinationAddress = destination
		return &cached, nil
	}

	route, err := s.source.BestHop(ctx, destination, amount)
	if err != nil || route == nil {
		return route, err
	}
	if err := s.cache.Set(ctx, key, route, routeCacheTTL); err != nil {
		logrus.Warnf("failed to cache route for %s: %v", destination.LedgerID, err)
	}
	return route, nil
}

// FixedRateQuoter quotes from a static table of decimal exchange rates. A
// configured A→B rate also answers B→A queries through its reciprocal.
type FixedRateQuoter struct {
	rates map[string]decimal.Decimal
}

func NewFixedRateQuoter(entries []config.RateConfig) (*FixedRateQuoter, error) {
	rates := make(map[string]decimal.Decimal, len(entries))
	for _, entry := range entries {
		rate, err := decimal.NewFromString(entry.Rate)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
				fmt.Sprintf("invalid exchange rate %q for %s/%s", entry.Rate, entry.From, entry.To), err)
		}
		if rate.Sign() <= 0 {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
				fmt.Sprintf("exchange rate for %s/%s must be positive", entry.From, entry.To), nil)
		}
		rates[ratePairKey(entry.From, entry.To)] = rate
	}
	return &FixedRateQuoter{rates: rates}, nil
}

func ratePairKey(from, to string) string {
	return from + "/" + to
}

func (q *FixedRateQuoter) Quote(_ context.Context, sourceAmount int64, sourceCurrency, destinationCurrency string) (int64, error) {
	if sourceCurrency == destinationCurrency {
		return sourceAmount, nil
	}
	rate, ok := q.rates[ratePairKey(sourceCurrency, destinationCurrency)]
	if !ok {
		inverse, found := q.rates[ratePairKey(destinationCurrency, sourceCurrency)]
		if !found {
			return 0, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("no exchange rate configured for %s/%s", sourceCurrency, destinationCurrency), nil)
		}
		rate = decimal.NewFromInt(1).Div(inverse)
	}
	quoted := decimal.NewFromInt(sourceAmount).Mul(rate).Floor()
	return quoted.IntPart(), nil
}

// collaboratorContext bounds a route or rate lookup by the transfer's
// remaining expiry budget. Consulting a collaborator past the hold's expiry
// only produces work the sweep will undo.
func collaboratorContext(ctx context.Context, header *model.TransferHeader) (context.Context, context.CancelFunc) {
	if header == nil || header.ExpiresAt.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, header.ExpiresAt)
}
