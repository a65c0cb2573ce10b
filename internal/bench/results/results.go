// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package results provides sinks that publish finished benchmark run reports.
//
// The Redis sink is idempotent: each report carries a unique RunID, and
// publishing is guarded by a SETNX marker so that a retried publish (crash,
// timeout, duplicate delivery) becomes a no-op instead of a duplicate list
// entry.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"barrier/internal/bench/core"
)

// Sink publishes one finished run report. Implementations must be safe to
// retry with the same report.
type Sink interface {
	Publish(ctx context.Context, report core.Report) error
}

// RedisEvaler abstracts the minimal surface we need from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 (Cmdable.Eval) or any equivalent.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisSink publishes reports idempotently using a Lua script:
// 1) SETNX run:<run_id> 1
// 2) If set -> LPUSH the report JSON onto the report list
// 3) EXPIRE the marker (TTL) for leak protection
// If SETNX fails (already published), returns OK and makes no changes.
type RedisSink struct {
	client    RedisEvaler
	listKey   string
	markerTTL time.Duration
}

// NewRedisSink returns a sink with the given client and marker TTL.
// markerTTL guards against unbounded growth of run markers; choose a duration
// comfortably larger than your maximum retry window.
func NewRedisSink(client RedisEvaler, markerTTL time.Duration) *RedisSink {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisSink{client: client, listKey: RedisReportListKey(), markerTTL: markerTTL}
}

// redisLuaScript performs the idempotent publish. It returns 1 if published, 0 if already published.
const redisLuaScript = `
local listKey = KEYS[1]
local markerKey = KEYS[2]
local payload = ARGV[1]
local ttlSeconds = tonumber(ARGV[2])
-- try to set the idempotency marker
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('LPUSH', listKey, payload)
  if ttlSeconds and ttlSeconds > 0 then
    redis.call('EXPIRE', markerKey, ttlSeconds)
  end
  return 1
else
  -- already published; no-op
  return 0
end
`

// Keys layout helpers (public for interoperability with other components)
func RedisReportListKey() string            { return "bench:reports" }
func RedisRunMarkerKey(runID string) string { return fmt.Sprintf("run:%s", runID) }

// Publish serializes the report and applies the idempotent Lua publish.
func (r *RedisSink) Publish(ctx context.Context, report core.Report) error {
	if report.RunID == "" {
		return errors.New("Report.RunID must be set")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report run=%s: %w", report.RunID, err)
	}
	keys := []string{r.listKey, RedisRunMarkerKey(report.RunID)}
	args := []interface{}{string(payload), int(r.markerTTL.Seconds())}
	if _, err := r.client.Eval(ctx, redisLuaScript, keys, args...); err != nil {
		return fmt.Errorf("redis eval run=%s: %w", report.RunID, err)
	}
	return nil
}
