// Copyright 2025 The QuickODM Authors
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

package adapter

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/quickodm/quickodm/config"
)

// PingWithRetry verifies connectivity, retrying transient connect failures up
// to the pool's max_retries with retry_interval spacing. Only connection
// establishment retries; data statements never do.
func PingWithRetry(ctx context.Context, pool config.PoolConfig, ping func(context.Context) error) error {
	op := func() (struct{}, error) {
		return struct{}{}, ping(ctx)
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(pool.RetryInterval())),
		backoff.WithMaxTries(uint(pool.MaxRetries)+1),
	)
	return err
}
