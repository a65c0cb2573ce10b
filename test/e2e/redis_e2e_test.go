//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// TestRedisReportPublishE2E verifies the real Redis publish path: a finished
// run lands exactly once on the report list with its idempotency marker set.
// Requires a Redis at 127.0.0.1:6379.
func TestRedisReportPublishE2E(t *testing.T) {
	// Arrange: ensure Redis is reachable
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}

	const listKey = "bench:reports"
	// clean slate
	_ = rc.Del(context.Background(), listKey).Err()

	rs := buildAndStartServer(t,
		"-redis_addr=127.0.0.1:6379",
		"-redis_marker_ttl=1m",
	)
	client := &http.Client{Timeout: 2 * time.Minute}

	// Act: run one benchmark through the control API.
	status, rep, raw := postRun(t, client, rs.baseURL, runRequest{
		Algorithm: "tournament",
		Parties:   4,
		Episodes:  1000,
	})
	if status != http.StatusOK {
		t.Fatalf("run: status %d body %s", status, raw)
	}

	// Assert: the report list carries exactly one new entry for this run.
	deadline := time.Now().Add(3 * time.Second)
	var entries []string
	for time.Now().Before(deadline) {
		var err error
		entries, err = rc.LRange(context.Background(), listKey, 0, -1).Result()
		if err != nil {
			t.Fatalf("redis LRANGE failed: %v", err)
		}
		if len(entries) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	found := 0
	for _, e := range entries {
		var got runReport
		if err := json.Unmarshal([]byte(e), &got); err != nil {
			t.Fatalf("report list entry is not JSON: %v\nEntry: %s", err, e)
		}
		if got.RunID == rep.RunID {
			found++
			if got.EpisodesDone != 1000 {
				t.Fatalf("published report episodes_done=%d want 1000", got.EpisodesDone)
			}
		}
	}
	if found != 1 {
		t.Fatalf("run %s appears %d times on %s, want exactly 1", rep.RunID, found, listKey)
	}

	// The idempotency marker must exist with a TTL.
	markerKey := "run:" + rep.RunID
	ttl, err := rc.TTL(context.Background(), markerKey).Result()
	if err != nil {
		t.Fatalf("redis TTL failed: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("marker %s has no TTL (got %v)", markerKey, ttl)
	}
}
