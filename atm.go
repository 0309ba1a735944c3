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
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	redlock "github.com/blnkfinance/tally/internal/lock"
	"github.com/blnkfinance/tally/model"
)

const (
	atmPrefix         = "atm"
	cardLockKeyPrefix = "tally:atm:card:"
)

type cardEntry struct {
	card     model.DebitCard
	pinHash  []byte
	failures int
	blocked  bool
}

// ATM serves card holders of one Tally. Each card operation runs inside a
// card session lock so a card cannot be used at two machines at once.
type ATM struct {
	location string
	tally    *Tally
	locks    redlock.Factory

	mu      sync.Mutex
	cards   map[string]*cardEntry
	journal []model.ATMTransaction

	// cash is only tracked when limited is set.
	cash    decimal.Decimal
	limited bool
}

type ATMOption func(*ATM)

// WithCashOnHand limits withdrawals to the notes loaded in the machine.
// Deposits add to it.
func WithCashOnHand(cash decimal.Decimal) ATMOption {
	return func(a *ATM) {
		a.cash = cash
		a.limited = true
	}
}

// NewATM creates an ATM at location. A nil locks factory keeps session
// locks in process memory.
func NewATM(location string, t *Tally, locks redlock.Factory, opts ...ATMOption) *ATM {
	if locks == nil {
		locks = redlock.LocalFactory()
	}
	a := &ATM{
		location: location,
		tally:    t,
		locks:    locks,
		cards:    make(map[string]*cardEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ATM) Location() string { return a.location }

// CashOnHand reports the cash left and whether it is tracked at all.
func (a *ATM) CashOnHand() (decimal.Decimal, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash, a.limited
}

// reserveCash takes amount out of the machine before the account is debited.
func (a *ATM) reserveCash(amount decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.limited {
		return nil
	}
	if amount.GreaterThan(a.cash) {
		return fmt.Errorf("%w: %s available", ErrInsufficientCash, a.cash)
	}
	a.cash = a.cash.Sub(amount)
	return nil
}

func (a *ATM) returnCash(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limited {
		a.cash = a.cash.Add(amount)
	}
}

// IssueCard registers card with pin. Only the bcrypt hash of the PIN is kept.
func (a *ATM) IssueCard(ctx context.Context, card model.DebitCard, pin string) error {
	_, span := tracer.Start(ctx, "IssueCard")
	defer span.End()

	if err := card.Validate(); err != nil {
		span.RecordError(err)
		return invalidRequest(err)
	}
	if err := model.ValidatePIN(pin); err != nil {
		span.RecordError(err)
		return invalidRequest(fmt.Errorf("pin: %w", err))
	}
	if _, err := a.tally.lookup(card.AccountID); err != nil {
		span.RecordError(err)
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), a.tally.conf.ATM.PinCost)
	if err != nil {
		span.RecordError(err)
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.cards[card.CardNumber]; ok {
		return fmt.Errorf("%w: %s", ErrCardExists, model.MaskCardNumber(card.CardNumber))
	}
	a.cards[card.CardNumber] = &cardEntry{card: card, pinHash: hash}
	return nil
}

// Withdraw dispenses amount from the card's account.
func (a *ATM) Withdraw(ctx context.Context, cardNumber, pin string, amount decimal.Decimal) (model.ATMTransaction, error) {
	return a.session(ctx, "ATMWithdraw", cardNumber, pin, func(ctx context.Context, card model.DebitCard) (model.ATMTransaction, error) {
		if err := a.reserveCash(amount); err != nil {
			return model.ATMTransaction{}, err
		}
		rec, err := a.tally.Withdraw(ctx, card.AccountID, amount)
		if err != nil {
			a.returnCash(amount)
			return model.ATMTransaction{}, err
		}
		return a.record(model.ATMWithdraw, card, "", amount, rec.BalanceAfter(), rec.ID()), nil
	})
}

func (a *ATM) Deposit(ctx context.Context, cardNumber, pin string, amount decimal.Decimal) (model.ATMTransaction, error) {
	return a.session(ctx, "ATMDeposit", cardNumber, pin, func(ctx context.Context, card model.DebitCard) (model.ATMTransaction, error) {
		rec, err := a.tally.Deposit(ctx, card.AccountID, amount)
		if err != nil {
			return model.ATMTransaction{}, err
		}
		a.returnCash(amount)
		return a.record(model.ATMDeposit, card, "", amount, rec.BalanceAfter(), rec.ID()), nil
	})
}

// Transfer sends amount from the card's account to target.
func (a *ATM) Transfer(ctx context.Context, cardNumber, pin, target string, amount decimal.Decimal) (model.ATMTransaction, error) {
	return a.session(ctx, "ATMTransfer", cardNumber, pin, func(ctx context.Context, card model.DebitCard) (model.ATMTransaction, error) {
		result, err := a.tally.Transfer(ctx, model.TransferRequest{
			Source:      card.AccountID,
			Destination: target,
			Amount:      amount,
			Description: "atm transfer at " + a.location,
		})
		if err != nil {
			return model.ATMTransaction{}, err
		}
		return a.record(model.ATMTransfer, card, target, amount, result.Out.BalanceAfter(), result.ID), nil
	})
}

func (a *ATM) CheckBalance(ctx context.Context, cardNumber, pin string) (decimal.Decimal, error) {
	tx, err := a.session(ctx, "ATMCheckBalance", cardNumber, pin, func(ctx context.Context, card model.DebitCard) (model.ATMTransaction, error) {
		balance, err := a.tally.Balance(ctx, card.AccountID)
		if err != nil {
			return model.ATMTransaction{}, err
		}
		return a.record(model.ATMBalanceCheck, card, "", decimal.Zero, balance, ""), nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return tx.Balance, nil
}

// Journal returns a copy of the successful operations in order.
func (a *ATM) Journal() []model.ATMTransaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.ATMTransaction, len(a.journal))
	copy(out, a.journal)
	return out
}

type cardOperation func(ctx context.Context, card model.DebitCard) (model.ATMTransaction, error)

// session holds the card lock, checks the PIN and runs op.
func (a *ATM) session(ctx context.Context, name, cardNumber, pin string, op cardOperation) (model.ATMTransaction, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	span.SetAttributes(attribute.String("atm.location", a.location), attribute.String("card", model.MaskCardNumber(cardNumber)))

	a.mu.Lock()
	_, known := a.cards[cardNumber]
	a.mu.Unlock()
	if !known {
		err := fmt.Errorf("%w: %s", ErrCardNotFound, model.MaskCardNumber(cardNumber))
		span.RecordError(err)
		return model.ATMTransaction{}, err
	}

	locker := a.locks(cardLockKeyPrefix + cardNumber)
	ttl := time.Duration(a.tally.conf.ATM.SessionTTLSec) * time.Second
	if err := locker.Lock(ctx, ttl); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			err = fmt.Errorf("%w: %s", ErrCardInUse, model.MaskCardNumber(cardNumber))
		}
		span.RecordError(err)
		return model.ATMTransaction{}, err
	}
	defer func() {
		if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			logrus.WithError(err).WithField("card", model.MaskCardNumber(cardNumber)).Warn("failed to release card session")
		}
	}()

	card, err := a.authenticate(cardNumber, pin)
	if err != nil {
		span.RecordError(err)
		return model.ATMTransaction{}, err
	}

	tx, err := op(ctx, card)
	if err != nil {
		span.RecordError(err)
		return model.ATMTransaction{}, err
	}

	a.mu.Lock()
	a.journal = append(a.journal, tx)
	a.mu.Unlock()
	return tx, nil
}

// authenticate runs with the card session held, so failures for one card
// are counted one attempt at a time.
func (a *ATM) authenticate(cardNumber, pin string) (model.DebitCard, error) {
	a.mu.Lock()
	entry := a.cards[cardNumber]
	blocked := entry.blocked
	card := entry.card
	hash := entry.pinHash
	a.mu.Unlock()

	masked := model.MaskCardNumber(cardNumber)
	if blocked {
		return model.DebitCard{}, fmt.Errorf("%w: %s", ErrCardBlocked, masked)
	}
	if card.Expired(a.tally.clock.Now()) {
		return model.DebitCard{}, fmt.Errorf("%w: %s", ErrCardExpired, masked)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(pin)) != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		entry.failures++
		if entry.failures >= a.tally.conf.ATM.MaxPinAttempts {
			entry.blocked = true
			logrus.WithFields(logrus.Fields{"card": masked, "location": a.location}).Warn("card blocked after repeated PIN failures")
			return model.DebitCard{}, fmt.Errorf("%w: %s", ErrCardBlocked, masked)
		}
		return model.DebitCard{}, fmt.Errorf("%w: %d attempts left", ErrInvalidPIN, a.tally.conf.ATM.MaxPinAttempts-entry.failures)
	}

	a.mu.Lock()
	entry.failures = 0
	a.mu.Unlock()
	return card, nil
}

func (a *ATM) record(op model.ATMOperation, card model.DebitCard, target string, amount, balance decimal.Decimal, reference string) model.ATMTransaction {
	return model.ATMTransaction{
		ID:         a.tally.ids.NewID(atmPrefix),
		Location:   a.location,
		Operation:  op,
		CardNumber: model.MaskCardNumber(card.CardNumber),
		AccountID:  card.AccountID,
		Target:     target,
		Amount:     amount,
		Balance:    balance,
		Reference:  reference,
		Timestamp:  a.tally.clock.Now(),
	}
}
