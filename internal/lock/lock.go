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

package redlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by Lock when another holder owns the key.
var ErrLockHeld = errors.New("lock is already held")

// Locker guards one key. A Locker is owned by a single holder at a time.
type Locker interface {
	Lock(ctx context.Context, ttl time.Duration) error
	Unlock(ctx context.Context) error
}

// Factory creates a Locker for key with a fresh holder value.
type Factory func(key string) Locker

type RedisLocker struct {
	client redis.UniversalClient
	key    string
	value  string
}

func NewLocker(client redis.UniversalClient, key, value string) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    key,
		value:  value,
	}
}

// RedisFactory returns a Factory holding locks in redis, each locker with
// its own random holder value.
func RedisFactory(client redis.UniversalClient) Factory {
	return func(key string) Locker {
		return NewLocker(client, key, uuid.NewString())
	}
}

func (l *RedisLocker) Lock(ctx context.Context, ttl time.Duration) error {
	success, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("%w: key %s", ErrLockHeld, l.key)
	}
	return nil
}

func (l *RedisLocker) Unlock(ctx context.Context) error {
	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	return nil
}

// LocalFactory holds locks in process memory. Expiry is checked lazily on
// the next Lock of the same key.
func LocalFactory() Factory {
	table := &localTable{held: make(map[string]localEntry)}
	return func(key string) Locker {
		return &localLocker{table: table, key: key, value: uuid.NewString()}
	}
}

type localEntry struct {
	value   string
	expires time.Time
}

type localTable struct {
	mu   sync.Mutex
	held map[string]localEntry
}

type localLocker struct {
	table *localTable
	key   string
	value string
}

func (l *localLocker) Lock(_ context.Context, ttl time.Duration) error {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if e, ok := l.table.held[l.key]; ok && time.Now().Before(e.expires) {
		return fmt.Errorf("%w: key %s", ErrLockHeld, l.key)
	}
	l.table.held[l.key] = localEntry{value: l.value, expires: time.Now().Add(ttl)}
	return nil
}

func (l *localLocker) Unlock(_ context.Context) error {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	e, ok := l.table.held[l.key]
	if !ok || e.value != l.value {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	delete(l.table.held, l.key)
	return nil
}
