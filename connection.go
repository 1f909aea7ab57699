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
	"sync"

	"github.com/ledgerlink/ledgerlink/model"
	"github.com/sirupsen/logrus"
)

// EventHandler receives ledger events for one connection. Handlers run on the
// connection's own goroutine, never on the emitting ledger's call stack, so a
// handler may call back into any ledger without deadlocking it.
type EventHandler func(event model.LedgerEvent)

const eventBufferSize = 256

// connection is one registered listener on a ledger account. Events flow
// through a buffered channel drained by a dedicated goroutine.
type connection struct {
	accountID string
	events    chan model.LedgerEvent
	done      chan struct{}

	mu        sync.RWMutex
	handler   EventHandler
	closed    bool
	ready     chan struct{}
	readyOnce sync.Once
}

func newConnection(accountID string) *connection {
	c := &connection{
		accountID: accountID,
		events:    make(chan model.LedgerEvent, eventBufferSize),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
	}
	go c.run()
	return c
}

// run waits for a handler before draining, so events emitted between Connect
// and RegisterEventHandler sit in the buffer instead of vanishing.
func (c *connection) run() {
	<-c.ready
	for event := range c.events {
		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(event)
		}
	}
	close(c.done)
}

func (c *connection) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *connection) setHandler(handler EventHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	c.markReady()
}

// deliver never blocks the emitting ledger. A full buffer means the listener
// has stalled; the event is dropped and logged. The send happens under the
// read lock so close cannot close the channel out from under it.
func (c *connection) deliver(event model.LedgerEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
		logrus.WithFields(logrus.Fields{
			"account": c.accountID,
			"ledger":  event.EventLedger().ID,
		}).Warn("event buffer full, dropping ledger event")
	}
}

// close stops the dispatch goroutine after the queued events have drained.
// The closed flag is flipped under the write lock first, so no in-flight
// deliver can touch the channel once it is closed.
func (c *connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.markReady()
	close(c.events)
	<-c.done
}
