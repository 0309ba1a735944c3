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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator supplies record and transfer ids. Uniqueness is the
// generator's responsibility.
type IDGenerator interface {
	NewID(prefix string) string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func(prefix string) string

func (f IDFunc) NewID(prefix string) string { return f(prefix) }

// UUIDGenerator produces ids of the form <prefix>_<uuid>.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}

const (
	transactionPrefix = "txn"
	transferPrefix    = "trf"
)
