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

// DefaultLockTimeout bounds how long a transfer waits for each account lock.
const DefaultLockTimeout = 5 * time.Second

// TransferResult holds both legs of a committed transfer.
type TransferResult struct {
	ID  string      `json:"id"`
	Out Transaction `json:"out"`
	In  Transaction `json:"in"`
}

type transferOptions struct {
	lockTimeout time.Duration
	reference   string
}

// TransferOption configures a single Transfer call.
type TransferOption func(*transferOptions)

func WithLockTimeout(d time.Duration) TransferOption {
	return func(o *transferOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithReference sets the transfer id stamped on both legs.
func WithReference(reference string) TransferOption {
	return func(o *transferOptions) { o.reference = reference }
}

// Transfer debits source and credits destination while holding both account
// locks, so no reader observes one leg without the other. Locks are taken in
// ascending id order. The operation can be cancelled through ctx until the
// locks are held; after that it always completes.
func Transfer(ctx context.Context, source, destination *Account, amount decimal.Decimal, opts ...TransferOption) (TransferResult, error) {
	if source == nil || destination == nil {
		return TransferResult{}, ErrInvalidAccount
	}
	if source == destination || source.id == destination.id {
		return TransferResult{}, ErrSameAccount
	}
	if !amount.IsPositive() {
		return TransferResult{}, invalidAmount(amount)
	}

	o := transferOptions{lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if err := ctx.Err(); err != nil {
		return TransferResult{}, err
	}

	first, second := source, destination
	if second.id < first.id {
		first, second = second, first
	}
	if err := first.lockWithin(ctx, o.lockTimeout); err != nil {
		return TransferResult{}, err
	}
	if err := second.lockWithin(ctx, o.lockTimeout); err != nil {
		first.unlock()
		return TransferResult{}, err
	}

	result, err := commitTransfer(source, destination, amount, o.reference)
	sourceBalance := source.balance
	second.unlock()
	first.unlock()

	if err != nil {
		source.publishRejected(KindTransferOut, amount, sourceBalance, err)
		return TransferResult{}, err
	}
	source.publishApplied(result.Out)
	destination.publishApplied(result.In)
	return result, nil
}

// commitTransfer runs with both locks held.
func commitTransfer(source, destination *Account, amount decimal.Decimal, reference string) (TransferResult, error) {
	if source.closed {
		return TransferResult{}, closedError(source)
	}
	if destination.closed {
		return TransferResult{}, closedError(destination)
	}
	if reference == "" {
		reference = source.ids.NewID(transferPrefix)
	}
	out, err := source.debitLocked(KindTransferOut, amount, destination.id, reference)
	if err != nil {
		return TransferResult{}, err
	}
	in := destination.creditLocked(KindTransferIn, amount, source.id, reference)
	return TransferResult{ID: reference, Out: out, In: in}, nil
}
