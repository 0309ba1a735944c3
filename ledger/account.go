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

// Package ledger holds balances that change only through guarded, recorded
// operations. An Account owns its history; a Transfer moves funds between two
// accounts as one unit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

// Account holds a balance and its append-only history. The semaphore guards
// balance, history and closed together.
type Account struct {
	id     string
	policy OverdraftPolicy
	clock  Clock
	ids    IDGenerator
	sink   EventSink

	sem     *semaphore.Weighted
	balance decimal.Decimal
	history []Transaction
	closed  bool
}

// Option configures an Account at construction.
type Option func(*Account)

func WithOverdraft(policy OverdraftPolicy) Option {
	return func(a *Account) { a.policy = policy }
}

func WithClock(clock Clock) Option {
	return func(a *Account) {
		if clock != nil {
			a.clock = clock
		}
	}
}

func WithIDGenerator(ids IDGenerator) Option {
	return func(a *Account) {
		if ids != nil {
			a.ids = ids
		}
	}
}

func WithEventSink(sink EventSink) Option {
	return func(a *Account) {
		if sink != nil {
			a.sink = sink
		}
	}
}

// NewAccount opens an account with a non-negative initial balance. The
// initial balance is not recorded as a transaction.
func NewAccount(id string, initial decimal.Decimal, opts ...Option) (*Account, error) {
	if id == "" {
		return nil, ErrInvalidAccount
	}
	if initial.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance %s", ErrInvalidAmount, initial)
	}
	a := &Account{
		id:      id,
		policy:  NoOverdraft(),
		clock:   SystemClock{},
		ids:     UUIDGenerator{},
		sink:    nopSink{},
		sem:     semaphore.NewWeighted(1),
		balance: initial,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Account) ID() string { return a.id }

func (a *Account) OverdraftLimit() decimal.Decimal { return a.policy.Limit() }

func (a *Account) Balance() decimal.Decimal {
	a.lock()
	defer a.unlock()
	return a.balance
}

// History returns a copy of the records in commit order.
func (a *Account) History() []Transaction {
	a.lock()
	out := make([]Transaction, len(a.history))
	copy(out, a.history)
	a.unlock()
	return out
}

// Snapshot returns the balance together with the history that produced it.
func (a *Account) Snapshot() (decimal.Decimal, []Transaction) {
	a.lock()
	defer a.unlock()
	out := make([]Transaction, len(a.history))
	copy(out, a.history)
	return a.balance, out
}

// Len returns the number of records.
func (a *Account) Len() int {
	a.lock()
	defer a.unlock()
	return len(a.history)
}

func (a *Account) Closed() bool {
	a.lock()
	defer a.unlock()
	return a.closed
}

// Credit records a deposit.
func (a *Account) Credit(amount decimal.Decimal) (Transaction, error) {
	return a.credit(KindDeposit, amount)
}

// CreditInterest records accrued interest. Accrual is always triggered by
// the caller.
func (a *Account) CreditInterest(amount decimal.Decimal) (Transaction, error) {
	return a.credit(KindInterest, amount)
}

// Debit records a withdrawal, failing with ErrInsufficientFunds when the
// overdraft policy does not allow it.
func (a *Account) Debit(amount decimal.Decimal) (Transaction, error) {
	return a.debit(KindWithdrawal, amount)
}

// ChargeFee records a fee. Fees obey the same overdraft guard as debits.
func (a *Account) ChargeFee(amount decimal.Decimal) (Transaction, error) {
	return a.debit(KindFee, amount)
}

// Close stops all further mutation. History stays readable.
func (a *Account) Close() error {
	a.lock()
	if a.closed {
		a.unlock()
		return closedError(a)
	}
	a.closed = true
	balance := a.balance
	a.unlock()

	a.sink.Publish(context.Background(), Event{
		Type:       EventAccountClosed,
		AccountID:  a.id,
		Balance:    balance,
		OccurredAt: a.clock.Now(),
	})
	return nil
}

func (a *Account) credit(kind Kind, amount decimal.Decimal) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, invalidAmount(amount)
	}
	a.lock()
	if a.closed {
		a.unlock()
		return Transaction{}, closedError(a)
	}
	rec := a.creditLocked(kind, amount, "", "")
	a.unlock()

	a.publishApplied(rec)
	return rec, nil
}

func (a *Account) debit(kind Kind, amount decimal.Decimal) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, invalidAmount(amount)
	}
	a.lock()
	if a.closed {
		a.unlock()
		return Transaction{}, closedError(a)
	}
	rec, err := a.debitLocked(kind, amount, "", "")
	balance := a.balance
	a.unlock()

	if err != nil {
		a.publishRejected(kind, amount, balance, err)
		return Transaction{}, err
	}
	a.publishApplied(rec)
	return rec, nil
}

// creditLocked and debitLocked are the only places the balance changes.
// Callers hold the semaphore and have validated amount.
func (a *Account) creditLocked(kind Kind, amount decimal.Decimal, counterparty, reference string) Transaction {
	a.balance = a.balance.Add(amount)
	return a.appendLocked(kind, amount, counterparty, reference)
}

func (a *Account) debitLocked(kind Kind, amount decimal.Decimal, counterparty, reference string) (Transaction, error) {
	if !a.policy.Allows(a.balance, amount) {
		return Transaction{}, fmt.Errorf("%w: account %s has balance %s and overdraft limit %s, requested %s",
			ErrInsufficientFunds, a.id, a.balance, a.policy.Limit(), amount)
	}
	a.balance = a.balance.Sub(amount)
	return a.appendLocked(kind, amount, counterparty, reference), nil
}

func (a *Account) appendLocked(kind Kind, amount decimal.Decimal, counterparty, reference string) Transaction {
	rec := Transaction{
		id:           a.ids.NewID(transactionPrefix),
		amount:       amount,
		kind:         kind,
		timestamp:    a.clock.Now(),
		accountID:    a.id,
		counterparty: counterparty,
		reference:    reference,
		balanceAfter: a.balance,
	}
	a.history = append(a.history, rec)
	return rec
}

func (a *Account) publishApplied(rec Transaction) {
	a.sink.Publish(context.Background(), Event{
		Type:        EventTransactionApplied,
		AccountID:   a.id,
		Kind:        rec.kind,
		Amount:      rec.amount,
		Balance:     rec.balanceAfter,
		Transaction: &rec,
		OccurredAt:  rec.timestamp,
	})
}

func (a *Account) publishRejected(kind Kind, amount, balance decimal.Decimal, reason error) {
	a.sink.Publish(context.Background(), Event{
		Type:       EventTransactionRejected,
		AccountID:  a.id,
		Kind:       kind,
		Amount:     amount,
		Balance:    balance,
		Reason:     reason.Error(),
		OccurredAt: a.clock.Now(),
	})
}

// lock never fails: Acquire only errors on a done context.
func (a *Account) lock() {
	_ = a.sem.Acquire(context.Background(), 1)
}

func (a *Account) unlock() {
	a.sem.Release(1)
}

// lockWithin waits at most timeout for the semaphore. Cancellation of ctx is
// reported as the ctx error, any deadline as ErrOperationTimedOut.
func (a *Account) lockWithin(ctx context.Context, timeout time.Duration) error {
	if a.sem.TryAcquire(1) {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: account %s after %s", ErrOperationTimedOut, a.id, timeout)
	}
	return nil
}

func closedError(a *Account) error {
	return fmt.Errorf("%w: %s", ErrAccountClosed, a.id)
}

func invalidAmount(amount decimal.Decimal) error {
	return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
}
