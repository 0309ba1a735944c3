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

	"go.opentelemetry.io/otel/attribute"

	"github.com/blnkfinance/tally/model"
)

// Statement reports the history of an open or archived account.
func (t *Tally) Statement(ctx context.Context, id string) (model.Statement, error) {
	_, span := tracer.Start(ctx, "Statement")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	if e, err := t.lookup(id); err == nil {
		balance, history := e.account.Snapshot()
		st := model.NewStatement(id, balance, history)
		st.HolderName = e.profile.HolderName
		st.GeneratedAt = t.clock.Now()
		return st, nil
	}

	archived, err := t.ArchivedAccount(id)
	if err != nil {
		span.RecordError(err)
		return model.Statement{}, err
	}
	st := model.NewStatement(id, archived.FinalBalance, archived.History)
	st.HolderName = archived.Profile.HolderName
	st.GeneratedAt = t.clock.Now()
	return st, nil
}
