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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

// interestPlaces is the precision interest is rounded to before crediting.
const interestPlaces = 2

type mutation func(*ledger.Account, decimal.Decimal) (ledger.Transaction, error)

func (t *Tally) apply(ctx context.Context, name, id string, amount decimal.Decimal, fn mutation) (ledger.Transaction, error) {
	_, span := tracer.Start(ctx, name)
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id), attribute.String("amount", amount.String()))

	e, err := t.lookup(id)
	if err != nil {
		span.RecordError(err)
		return ledger.Transaction{}, err
	}
	rec, err := fn(e.account, amount)
	if err != nil {
		span.RecordError(err)
		logrus.WithFields(logrus.Fields{"account_id": id, "amount": amount.String(), "operation": name}).WithError(err).Warn("operation rejected")
		return ledger.Transaction{}, err
	}
	span.AddEvent("Transaction applied", trace.WithAttributes(attribute.String("transaction.id", rec.ID())))
	return rec, nil
}

func (t *Tally) Deposit(ctx context.Context, id string, amount decimal.Decimal) (ledger.Transaction, error) {
	return t.apply(ctx, "Deposit", id, amount, (*ledger.Account).Credit)
}

func (t *Tally) Withdraw(ctx context.Context, id string, amount decimal.Decimal) (ledger.Transaction, error) {
	return t.apply(ctx, "Withdraw", id, amount, (*ledger.Account).Debit)
}

func (t *Tally) ChargeFee(ctx context.Context, id string, amount decimal.Decimal) (ledger.Transaction, error) {
	return t.apply(ctx, "ChargeFee", id, amount, (*ledger.Account).ChargeFee)
}

// ApplyInterest credits balance times the account's interest rate, rounded
// to cents. Accounts with no rate, or a balance that earns nothing, get
// ErrNoInterestDue.
func (t *Tally) ApplyInterest(ctx context.Context, id string) (ledger.Transaction, error) {
	ctx, span := tracer.Start(ctx, "ApplyInterest")
	defer span.End()

	e, err := t.lookup(id)
	if err != nil {
		span.RecordError(err)
		return ledger.Transaction{}, err
	}
	interest := e.account.Balance().Mul(e.profile.InterestRate).Round(interestPlaces)
	if !interest.IsPositive() {
		err := fmt.Errorf("%w: account %s", ErrNoInterestDue, id)
		span.RecordError(err)
		return ledger.Transaction{}, err
	}
	return t.apply(ctx, "CreditInterest", id, interest, (*ledger.Account).CreditInterest)
}

func (t *Tally) History(ctx context.Context, id string) ([]ledger.Transaction, error) {
	_, span := tracer.Start(ctx, "History")
	defer span.End()

	e, err := t.lookup(id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return e.account.History(), nil
}

func (t *Tally) Balance(ctx context.Context, id string) (decimal.Decimal, error) {
	_, span := tracer.Start(ctx, "Balance")
	defer span.End()

	e, err := t.lookup(id)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}
	return e.account.Balance(), nil
}

// Transfer moves money between two registered accounts. A non-empty
// reference is claimed first and released again if the transfer fails, so a
// retried request never commits twice. Lock timeouts are retried with
// exponential backoff up to the configured limit.
func (t *Tally) Transfer(ctx context.Context, req model.TransferRequest) (ledger.TransferResult, error) {
	ctx, span := tracer.Start(ctx, "Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer.source", req.Source),
		attribute.String("transfer.destination", req.Destination),
		attribute.String("transfer.amount", req.Amount.String()),
	)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return ledger.TransferResult{}, invalidRequest(err)
	}
	source, err := t.lookup(req.Source)
	if err != nil {
		span.RecordError(err)
		return ledger.TransferResult{}, err
	}
	destination, err := t.lookup(req.Destination)
	if err != nil {
		span.RecordError(err)
		return ledger.TransferResult{}, err
	}

	opts := []ledger.TransferOption{ledger.WithLockTimeout(t.lockTimeout())}
	if req.Reference != "" {
		claimed, err := t.refs.Claim(ctx, req.Reference)
		if err != nil {
			span.RecordError(err)
			return ledger.TransferResult{}, err
		}
		if !claimed {
			err := fmt.Errorf("%w: %s", ErrDuplicateReference, req.Reference)
			span.RecordError(err)
			return ledger.TransferResult{}, err
		}
		opts = append(opts, ledger.WithReference(req.Reference))
	}

	attempts := 0
	var result ledger.TransferResult
	operation := func() error {
		attempts++
		var err error
		result, err = ledger.Transfer(ctx, source.account, destination.account, req.Amount, opts...)
		if err != nil && !errors.Is(err, ledger.ErrOperationTimedOut) {
			return backoff.Permanent(err)
		}
		return err
	}
	err = backoff.Retry(operation, t.retryPolicy(ctx))
	span.SetAttributes(attribute.Int("transfer.attempts", attempts))

	if err != nil {
		if req.Reference != "" {
			if releaseErr := t.refs.Release(context.WithoutCancel(ctx), req.Reference); releaseErr != nil {
				logrus.WithError(releaseErr).WithField("reference", req.Reference).Error("failed to release transfer reference")
			}
		}
		span.RecordError(err)
		logrus.WithFields(logrus.Fields{
			"source":      req.Source,
			"destination": req.Destination,
			"amount":      req.Amount.String(),
			"attempts":    attempts,
		}).WithError(err).Warn("transfer rejected")
		return ledger.TransferResult{}, err
	}

	span.AddEvent("Transfer committed", trace.WithAttributes(attribute.String("transfer.id", result.ID)))
	return result, nil
}

func (t *Tally) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	retries := max(t.conf.Transfer.MaxRetries, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}
