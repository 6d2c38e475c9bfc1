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

package pool

import (
	"time"

	"github.com/quickodm/quickodm/config"
)

// leaseTimer is an acquire deadline; a zero connection timeout means wait
// forever (its channel stays nil and never fires).
type leaseTimer struct {
	t *time.Timer
}

func acquireTimer(p config.PoolConfig) leaseTimer {
	if p.ConnectionTimeoutMs <= 0 {
		return leaseTimer{}
	}
	return leaseTimer{t: time.NewTimer(p.ConnectionTimeout())}
}

func (lt leaseTimer) c() <-chan time.Time {
	if lt.t == nil {
		return nil
	}
	return lt.t.C
}

func (lt leaseTimer) stop() {
	if lt.t != nil {
		lt.t.Stop()
	}
}
