/*
Copyright 2024 Blnk Finance Authors.

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

package tally

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

var tracer = otel.Tracer("tally")

const accountPrefix = "acc"

// Tally is an in-memory registry of ledger accounts. It resolves accounts by
// id and adds idempotent transfers, interest and archiving on top of them.
type Tally struct {
	mu       sync.RWMutex
	accounts map[string]*entry
	archive  map[string]model.ArchivedAccount
	// closing holds ids whose account is being closed outside mu.
	closing  map[string]struct{}

	loansMu sync.Mutex
	loans   map[string]*loanEntry

	conf  *config.Configuration
	clock ledger.Clock
	ids   ledger.IDGenerator
	sink  ledger.EventSink
	refs  ReferenceStore
}

type entry struct {
	account *ledger.Account
	profile model.AccountProfile
}

type Option func(*Tally)

// WithEventSink sets the sink every account publishes to.
func WithEventSink(sink ledger.EventSink) Option {
	return func(t *Tally) {
		if sink != nil {
			t.sink = sink
		}
	}
}

func WithClock(clock ledger.Clock) Option {
	return func(t *Tally) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func WithIDGenerator(ids ledger.IDGenerator) Option {
	return func(t *Tally) {
		if ids != nil {
			t.ids = ids
		}
	}
}

// WithReferenceStore sets where transfer references are claimed. The default
// keeps them in memory.
func WithReferenceStore(refs ReferenceStore) Option {
	return func(t *Tally) {
		if refs != nil {
			t.refs = refs
		}
	}
}

// WithConfig overrides the loaded configuration.
func WithConfig(conf *config.Configuration) Option {
	return func(t *Tally) {
		if conf != nil {
			t.conf = conf
		}
	}
}

// NewTally builds an empty registry from the loaded configuration, falling
// back to defaults when none was loaded.
func NewTally(opts ...Option) *Tally {
	t := &Tally{
		accounts: make(map[string]*entry),
		archive:  make(map[string]model.ArchivedAccount),
		closing:  make(map[string]struct{}),
		loans:    make(map[string]*loanEntry),
		conf:     config.FetchOrDefault(),
		clock:    ledger.SystemClock{},
		ids:      ledger.UUIDGenerator{},
		sink:     ledger.Sinks(),
		refs:     NewMemoryReferences(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the configuration the registry was built with.
func (t *Tally) Config() *config.Configuration {
	return t.conf
}

func (t *Tally) lockTimeout() time.Duration {
	return time.Duration(t.conf.Ledger.LockTimeoutMs) * time.Millisecond
}

func (t *Tally) lookup(id string) (*entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.accounts[id]
	if !ok {
		return nil, accountNotFound(id)
	}
	return e, nil
}
