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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/tally/model"
)

func TestMemoryReferences(t *testing.T) {
	refs := NewMemoryReferences()
	ctx := context.Background()

	ok, err := refs.Claim(ctx, "ref-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = refs.Claim(ctx, "ref-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, refs.Release(ctx, "ref-1"))
	ok, _ = refs.Claim(ctx, "ref-1")
	assert.True(t, ok)
}

func TestRedisReferences(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	refs := NewRedisReferences(client, time.Hour)
	ctx := context.Background()

	ok, err := refs.Claim(ctx, "ref-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("tally:reference:ref-1"))
	assert.Equal(t, time.Hour, mr.TTL("tally:reference:ref-1"))

	ok, err = refs.Claim(ctx, "ref-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, refs.Release(ctx, "ref-1"))
	assert.False(t, mr.Exists("tally:reference:ref-1"))
}

func TestRedisReferencesError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	refs := NewRedisReferences(db, time.Minute)

	mock.Regexp().ExpectSetNX("tally:reference:ref-1", `.*`, time.Minute).SetErr(errors.New("connection refused"))

	_, err := refs.Claim(context.Background(), "ref-1")
	assert.EqualError(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferWithRedisReferences(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tl := newTestTally(t, WithReferenceStore(NewRedisReferences(client, time.Minute)))
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "100")
	openSavings(t, tl, "acc_b", "0")

	req := model.TransferRequest{Source: "acc_a", Destination: "acc_b", Amount: d("10"), Reference: "inv-9"}
	_, err := tl.Transfer(ctx, req)
	require.NoError(t, err)

	_, err = tl.Transfer(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	mr.Close()
	req.Reference = "inv-10"
	_, err = tl.Transfer(ctx, req)
	assert.Error(t, err)
	b, _ := tl.Balance(ctx, "acc_b")
	assert.True(t, d("10").Equal(b))
}
