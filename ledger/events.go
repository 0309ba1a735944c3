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

package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTransactionApplied  = "transaction.applied"
	EventTransactionRejected = "transaction.rejected"
	EventAccountClosed       = "account.closed"
)

// Event describes something that happened to an account. Transaction is
// nil for rejections and closures.
type Event struct {
	Type        string          `json:"type"`
	AccountID   string          `json:"account_id"`
	Kind        Kind            `json:"kind,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	Transaction *Transaction    `json:"transaction,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventSink receives account events after the account lock is released.
// Publish must not call back into the publishing account synchronously.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event Event)

func (f EventSinkFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) {}

type multiSink []EventSink

func (m multiSink) Publish(ctx context.Context, event Event) {
	for _, s := range m {
		s.Publish(ctx, event)
	}
}

// Sinks fans an event out to every non-nil sink in order.
func Sinks(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nopSink{}
	}
	return out
}
