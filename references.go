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
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const referenceKeyPrefix = "tally:reference:"

// ReferenceStore records which transfer references have been used.
// Claim reports false when ref is already taken.
type ReferenceStore interface {
	Claim(ctx context.Context, ref string) (bool, error)
	Release(ctx context.Context, ref string) error
}

type MemoryReferences struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryReferences() *MemoryReferences {
	return &MemoryReferences{seen: make(map[string]struct{})}
}

func (m *MemoryReferences) Claim(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[ref]; ok {
		return false, nil
	}
	m.seen[ref] = struct{}{}
	return true, nil
}

func (m *MemoryReferences) Release(_ context.Context, ref string) error {
	m.mu.Lock()
	delete(m.seen, ref)
	m.mu.Unlock()
	return nil
}

// RedisReferences shares claimed references between processes. Claims
// expire after ttl.
type RedisReferences struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisReferences(client redis.UniversalClient, ttl time.Duration) *RedisReferences {
	return &RedisReferences{client: client, ttl: ttl}
}

func (r *RedisReferences) Claim(ctx context.Context, ref string) (bool, error) {
	return r.client.SetNX(ctx, referenceKeyPrefix+ref, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
}

func (r *RedisReferences) Release(ctx context.Context, ref string) error {
	return r.client.Del(ctx, referenceKeyPrefix+ref).Err()
}
