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
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

// OpenAccount validates req and registers a new ledger account. Savings
// accounts never overdraw; current accounts use req.OverdraftLimit or the
// configured default.
func (t *Tally) OpenAccount(ctx context.Context, req model.OpenAccountRequest) (model.AccountProfile, error) {
	_, span := tracer.Start(ctx, "OpenAccount")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return model.AccountProfile{}, invalidRequest(err)
	}

	id := req.AccountID
	if id == "" {
		id = t.ids.NewID(accountPrefix)
	}

	policy := ledger.NoOverdraft()
	if req.Type == model.AccountTypeCurrent {
		limit := t.conf.Ledger.OverdraftLimit()
		if req.OverdraftLimit != nil {
			limit = *req.OverdraftLimit
		}
		p, err := ledger.OverdraftUpTo(limit)
		if err != nil {
			span.RecordError(err)
			return model.AccountProfile{}, err
		}
		policy = p
	}

	acc, err := ledger.NewAccount(id, req.InitialBalance,
		ledger.WithOverdraft(policy),
		ledger.WithClock(t.clock),
		ledger.WithIDGenerator(t.ids),
		ledger.WithEventSink(t.sink),
	)
	if err != nil {
		span.RecordError(err)
		return model.AccountProfile{}, err
	}

	profile := model.AccountProfile{
		AccountID:      id,
		Type:           req.Type,
		HolderName:     req.HolderName,
		InterestRate:   req.InterestRate,
		OverdraftLimit: policy.Limit(),
		OpenedAt:       t.clock.Now(),
		MetaData:       req.MetaData,
	}

	t.mu.Lock()
	_, active := t.accounts[id]
	_, archived := t.archive[id]
	_, closing := t.closing[id]
	if active || archived || closing {
		t.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrAccountExists, id)
		span.RecordError(err)
		return model.AccountProfile{}, err
	}
	t.accounts[id] = &entry{account: acc, profile: profile}
	t.mu.Unlock()

	span.AddEvent("Account opened", trace.WithAttributes(
		attribute.String("account.id", id),
		attribute.String("account.type", string(req.Type)),
	))
	logrus.WithFields(logrus.Fields{"account_id": id, "type": req.Type}).Debug("account opened")
	return profile, nil
}

// GetAccount returns the live ledger account registered under id.
func (t *Tally) GetAccount(id string) (*ledger.Account, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.account, nil
}

func (t *Tally) Profile(id string) (model.AccountProfile, error) {
	e, err := t.lookup(id)
	if err != nil {
		return model.AccountProfile{}, err
	}
	return e.profile, nil
}

// ListAccounts returns a summary of every open account, sorted by id.
func (t *Tally) ListAccounts(ctx context.Context) []model.AccountSummary {
	_, span := tracer.Start(ctx, "ListAccounts")
	defer span.End()

	t.mu.RLock()
	entries := make([]*entry, 0, len(t.accounts))
	for _, e := range t.accounts {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]model.AccountSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.AccountSummary{
			AccountID:      e.profile.AccountID,
			Type:           e.profile.Type,
			HolderName:     e.profile.HolderName,
			Balance:        e.account.Balance(),
			OverdraftLimit: e.account.OverdraftLimit(),
			Transactions:   e.account.Len(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	span.SetAttributes(attribute.Int("accounts.count", len(out)))
	return out
}

// CloseAccount closes the account, removes it from the registry and keeps
// its final balance and history in the archive. Any balance is allowed.
func (t *Tally) CloseAccount(ctx context.Context, id string) (model.ArchivedAccount, error) {
	_, span := tracer.Start(ctx, "CloseAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	t.mu.Lock()
	e, ok := t.accounts[id]
	if !ok {
		t.mu.Unlock()
		err := accountNotFound(id)
		span.RecordError(err)
		return model.ArchivedAccount{}, err
	}
	delete(t.accounts, id)
	t.closing[id] = struct{}{}
	t.mu.Unlock()

	// Close publishes account.closed, so it runs without mu held.
	if err := e.account.Close(); err != nil {
		t.mu.Lock()
		delete(t.closing, id)
		t.accounts[id] = e
		t.mu.Unlock()
		span.RecordError(err)
		return model.ArchivedAccount{}, err
	}

	balance, history := e.account.Snapshot()
	archived := model.ArchivedAccount{
		Profile:      e.profile,
		FinalBalance: balance,
		ClosedAt:     t.clock.Now(),
		History:      history,
	}
	t.mu.Lock()
	delete(t.closing, id)
	t.archive[id] = archived
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{"account_id": id, "final_balance": balance.String()}).Info("account closed")
	return archived, nil
}

// ArchivedAccount returns what was kept of a closed account.
func (t *Tally) ArchivedAccount(id string) (model.ArchivedAccount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	archived, ok := t.archive[id]
	if !ok {
		return model.ArchivedAccount{}, accountNotFound(id)
	}
	return archived, nil
}
