// Copyright 2018-2019 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package appctx carries a request-scoped logger and trace id through a
// context.Context, the way every handler in this service expects to find
// them.
package appctx

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type traceKey struct{}

// WithLogger returns a context with an associated logger.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// GetLogger returns the logger associated with the given context
// or a disabled logger in case no logger is stored inside the context.
func GetLogger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithTrace returns a context with an associated request trace id.
func WithTrace(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// NewTrace generates a fresh trace id and stores it in the context.
func NewTrace(ctx context.Context) context.Context {
	return WithTrace(ctx, uuid.New().String())
}

// GetTrace returns the trace stored in the context.
func GetTrace(ctx context.Context) string {
	if t, ok := ctx.Value(traceKey{}).(string); ok {
		return t
	}
	return "unknown"
}
