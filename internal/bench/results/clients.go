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

package results

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"barrier/internal/bench/core"
)

// LoggingRedisEvaler is a tiny demo client that just logs the Lua evaluation.
// It lets the demo select the Redis sink without needing a real Redis.
// Not for production use.

type LoggingRedisEvaler struct{}

func (LoggingRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fmt.Printf("[redis-demo] EVAL script(len=%d) KEYS=%v ARGS=%v\n", len(script), keys, truncateArgs(args))
	return int64(1), nil // pretend we published it
}

// GoRedisEvaler is a production-ready Redis client wrapper implementing RedisEvaler.
// It uses github.com/redis/go-redis/v9 under the hood.
// Use NewGoRedisEvaler to construct it with an address like "127.0.0.1:6379".

type GoRedisEvaler struct{ c *redis.Client }

func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	opt := &redis.Options{Addr: addr}
	return &GoRedisEvaler{c: redis.NewClient(opt)}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

// LoggingSink is a sink that prints a one-line summary of each report instead
// of publishing it anywhere. It enables running the benchmark service without
// a broker.

type LoggingSink struct{}

func (LoggingSink) Publish(ctx context.Context, report core.Report) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fmt.Printf("[sink-demo] run=%s alg=%s parties=%d episodes=%d rate=%.0f/s\n",
		report.RunID, report.Config.Algorithm, report.Config.Parties,
		report.EpisodesDone, report.EpisodesPerSec)
	return nil
}

func truncateArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok && len(s) > 256 {
			out[i] = s[:256] + "…"
			continue
		}
		out[i] = a
	}
	return out
}
