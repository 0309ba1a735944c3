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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

func TestOpenAccount(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()

	savings, err := tl.OpenAccount(ctx, model.OpenAccountRequest{
		Type:           model.AccountTypeSavings,
		HolderName:     "Ada Lovelace",
		InitialBalance: d("1000"),
		InterestRate:   d("0.025"),
	})
	require.NoError(t, err)
	assert.Equal(t, "acc_1", savings.AccountID)
	assert.True(t, savings.OverdraftLimit.IsZero())
	assert.Equal(t, testNow, savings.OpenedAt)

	current, err := tl.OpenAccount(ctx, model.OpenAccountRequest{
		AccountID:  "cur_1",
		Type:       model.AccountTypeCurrent,
		HolderName: "Grace Hopper",
	})
	require.NoError(t, err)
	assert.True(t, d("100").Equal(current.OverdraftLimit), "configured default applies")

	limit := d("750")
	explicit, err := tl.OpenAccount(ctx, model.OpenAccountRequest{
		AccountID:      "cur_2",
		Type:           model.AccountTypeCurrent,
		HolderName:     "Alan Turing",
		OverdraftLimit: &limit,
	})
	require.NoError(t, err)
	assert.True(t, limit.Equal(explicit.OverdraftLimit))

	acc, err := tl.GetAccount("cur_2")
	require.NoError(t, err)
	assert.True(t, limit.Equal(acc.OverdraftLimit()))

	profile, err := tl.Profile("acc_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", profile.HolderName)

	span := findSpan(t, "OpenAccount")
	assert.False(t, hasErrorEvent(span))
}

func TestOpenAccountErrors(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "10")

	_, err := tl.OpenAccount(ctx, model.OpenAccountRequest{AccountID: "acc_a", Type: model.AccountTypeSavings, HolderName: "Again"})
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = tl.OpenAccount(ctx, model.OpenAccountRequest{Type: model.AccountTypeSavings})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = tl.OpenAccount(ctx, model.OpenAccountRequest{Type: model.AccountTypeSavings, HolderName: "Neg", InitialBalance: d("-1")})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.True(t, hasErrorEvent(findSpan(t, "OpenAccount")))
	assert.Len(t, tl.ListAccounts(ctx), 1)
}

func TestLookupUnknownAccount(t *testing.T) {
	tl := newTestTally(t)

	_, err := tl.GetAccount("missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = tl.Profile("missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = tl.ArchivedAccount("missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = tl.CloseAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestListAccounts(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_c", "30")
	openSavings(t, tl, "acc_a", "10")
	openSavings(t, tl, "acc_b", "20")
	_, err := tl.Deposit(ctx, "acc_b", d("5"))
	require.NoError(t, err)

	list := tl.ListAccounts(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, "acc_a", list[0].AccountID)
	assert.Equal(t, "acc_b", list[1].AccountID)
	assert.Equal(t, "acc_c", list[2].AccountID)
	assert.True(t, d("25").Equal(list[1].Balance))
	assert.Equal(t, 1, list[1].Transactions)
}

func TestCloseAccount(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	limit := d("200")
	_, err := tl.OpenAccount(ctx, model.OpenAccountRequest{
		AccountID:      "cur_1",
		Type:           model.AccountTypeCurrent,
		HolderName:     "Grace Hopper",
		OverdraftLimit: &limit,
	})
	require.NoError(t, err)
	_, err = tl.Withdraw(ctx, "cur_1", d("150"))
	require.NoError(t, err)

	acc, err := tl.GetAccount("cur_1")
	require.NoError(t, err)

	archived, err := tl.CloseAccount(ctx, "cur_1")
	require.NoError(t, err)
	assert.True(t, d("-150").Equal(archived.FinalBalance), "negative balances may be closed")
	assert.Equal(t, testNow, archived.ClosedAt)
	require.Len(t, archived.History, 1)
	assert.Equal(t, ledger.KindWithdrawal, archived.History[0].Kind())

	assert.True(t, acc.Closed())
	_, err = acc.Credit(d("1"))
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)

	_, err = tl.Deposit(ctx, "cur_1", d("1"))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	again, err := tl.ArchivedAccount("cur_1")
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", again.Profile.HolderName)

	_, err = tl.OpenAccount(ctx, model.OpenAccountRequest{AccountID: "cur_1", Type: model.AccountTypeSavings, HolderName: "Reuse"})
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestClosedAccountRejectsPendingTransfer(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "100")
	openSavings(t, tl, "acc_b", "0")

	a, err := tl.GetAccount("acc_a")
	require.NoError(t, err)
	b, err := tl.GetAccount("acc_b")
	require.NoError(t, err)

	_, err = tl.CloseAccount(ctx, "acc_b")
	require.NoError(t, err)

	// a caller still holding the account pointer cannot move money into it
	_, err = ledger.Transfer(ctx, a, b, d("10"))
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)
	assert.True(t, d("100").Equal(a.Balance()))
}

func TestCloseAccountSinkCanReadRegistry(t *testing.T) {
	var tl *Tally
	seen := make(chan []model.AccountSummary, 1)
	sink := ledger.EventSinkFunc(func(ctx context.Context, e ledger.Event) {
		if e.Type == ledger.EventAccountClosed {
			seen <- tl.ListAccounts(ctx)
		}
	})
	tl = newTestTally(t, WithEventSink(sink))
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "10")
	openSavings(t, tl, "acc_b", "20")

	done := make(chan error, 1)
	go func() {
		_, err := tl.CloseAccount(ctx, "acc_a")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("CloseAccount did not return while the sink read the registry")
	}

	list := <-seen
	require.Len(t, list, 1)
	assert.Equal(t, "acc_b", list[0].AccountID)
	_, err := tl.ArchivedAccount("acc_a")
	assert.NoError(t, err)
}

func TestCloseAccountAlreadyClosed(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "10")

	acc, err := tl.GetAccount("acc_a")
	require.NoError(t, err)
	require.NoError(t, acc.Close())

	_, err = tl.CloseAccount(ctx, "acc_a")
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)

	// a failed close leaves the account registered and not archived
	_, err = tl.GetAccount("acc_a")
	assert.NoError(t, err)
	_, err = tl.ArchivedAccount("acc_a")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
