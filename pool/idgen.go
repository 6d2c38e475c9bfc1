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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/value"
)

// IDGenerator allocates application-generated identifiers for an alias.
// Backend-issued strategies return Null and let the driver report the id.
type IDGenerator struct {
	kind config.IDStrategyKind
	sf   *snowflakeGen
}

// NewIDGenerator builds the generator for a strategy.
func NewIDGenerator(s config.IDStrategy) (*IDGenerator, error) {
	g := &IDGenerator{kind: s.Kind}
	if s.Kind == config.Snowflake {
		if s.MachineID < 0 || s.MachineID > maxSnowflakeNode || s.DatacenterID < 0 || s.DatacenterID > maxSnowflakeNode {
			return nil, fmt.Errorf("snowflake ids out of range: machine %d, datacenter %d", s.MachineID, s.DatacenterID)
		}
		g.sf = &snowflakeGen{machineID: s.MachineID, datacenterID: s.DatacenterID}
	}
	return g, nil
}

// Next returns the next identifier. Textual strategies always yield strings
// so every backend stores a portable form.
func (g *IDGenerator) Next() value.Value {
	switch g.kind {
	case config.UUIDStrategy:
		return value.String(uuid.NewString())
	case config.ObjectID:
		return value.String(bson.NewObjectID().Hex())
	case config.Snowflake:
		return value.String(fmt.Sprintf("%d", g.sf.next()))
	default:
		return value.Null()
	}
}

// Backend-issued reports whether the backend allocates ids itself.
func (g *IDGenerator) BackendIssued() bool {
	return g.kind == config.AutoIncrement
}

const (
	maxSnowflakeNode   = 31
	snowflakeEpochMs   = 1288834974657 // fixed epoch shared by all nodes
	snowflakeSeqBits   = 12
	snowflakeNodeBits  = 5
	snowflakeMaxSeq    = (1 << snowflakeSeqBits) - 1
	snowflakeMachineSh = snowflakeSeqBits
	snowflakeDcSh      = snowflakeSeqBits + snowflakeNodeBits
	snowflakeTimeSh    = snowflakeSeqBits + 2*snowflakeNodeBits
)

// snowflakeGen packs millisecond timestamps with datacenter, machine, and
// sequence bits into a monotonic 64-bit id.
type snowflakeGen struct {
	mu           sync.Mutex
	machineID    int64
	datacenterID int64
	lastMs       int64
	seq          int64
}

func (s *snowflakeGen) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()
	if now < s.lastMs {
		now = s.lastMs
	}
	if now == s.lastMs {
		s.seq = (s.seq + 1) & snowflakeMaxSeq
		if s.seq == 0 {
			for now <= s.lastMs {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.seq = 0
	}
	s.lastMs = now
	return (now-snowflakeEpochMs)<<snowflakeTimeSh |
		s.datacenterID<<snowflakeDcSh |
		s.machineID<<snowflakeMachineSh |
		s.seq
}
