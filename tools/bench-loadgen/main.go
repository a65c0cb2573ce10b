// bench-loadgen is a tiny, dependency-free HTTP load generator for the barrier
// bench control server. It reuses HTTP connections (keep-alive) and supports
// concurrency so driver scripts run fast on Windows (Git Bash), Ubuntu (WSL),
// and macOS without relying on external tools.
//
// Modes:
//   - fixed: POST the same run config N times
//   - sweep: rotate through every algorithm at the given party count
//
// Usage examples:
//
//	bench-loadgen -base=http://127.0.0.1:8080 -mode=fixed -algorithm=central -parties=4 -n=20 -c=2
//	bench-loadgen -base=http://127.0.0.1:8080 -mode=sweep -parties=8 -episodes=50000 -n=25
//
// Notes:
//   - Uses POST /run with a JSON body. Non-2xx responses are counted as errors.
//   - Prints a one-line summary with duration and approximate throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeFixed modeType = "fixed"
	modeSweep modeType = "sweep"
)

var sweepAlgorithms = []string{"central", "dissemination", "butterfly", "tournament", "statictree"}

type runRequest struct {
	Algorithm  string `json:"algorithm"`
	Parties    int    `json:"parties"`
	Episodes   int    `json:"episodes"`
	Reduction  bool   `json:"reduction"`
	PinThreads bool   `json:"pin_threads"`
}

func main() {
	var (
		base      = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host, e.g. http://127.0.0.1:8080")
		path      = flag.String("path", "/run", "Request path (e.g., /run)")
		modeS     = flag.String("mode", string(modeFixed), "Mode: fixed|sweep")
		algorithm = flag.String("algorithm", "central", "Algorithm for fixed mode")
		parties   = flag.Int("parties", 4, "Party count for each requested run")
		episodes  = flag.Int("episodes", 10_000, "Episodes for each requested run")
		reduction = flag.Bool("reduction", false, "Request the reduction overlay")
		N         = flag.Int("n", 20, "Total requests to send")
		conc      = flag.Int("c", 1, "Number of concurrent workers (the server serializes runs anyway)")
		// Timeouts & transport tuning
		timeout    = flag.Duration("timeout", 10*time.Minute, "Overall timeout for the loadgen run")
		reqTimeout = flag.Duration("req_timeout", 2*time.Minute, "Per-request timeout (each request is a full benchmark run)")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 16, "Max idle connections total")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeFixed && m != modeSweep {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want fixed|sweep)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	baseURL := strings.TrimRight(*base, "/")
	p := *path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	fullURL := baseURL + p

	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxIdleConns:    *maxIdle,
		IdleConnTimeout: *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: *reqTimeout}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var ok, failed int64

	worker := func(id, count int) {
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			cfg := runRequest{
				Algorithm: *algorithm,
				Parties:   *parties,
				Episodes:  *episodes,
				Reduction: *reduction,
			}
			if m == modeSweep {
				cfg.Algorithm = sweepAlgorithms[(i+id)%len(sweepAlgorithms)]
			}
			body, _ := json.Marshal(cfg)
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				// Brief backoff on errors to avoid hot spinning
				time.Sleep(200 * time.Microsecond)
				continue
			}
			// Drain and close body to enable connection reuse
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				atomic.AddInt64(&ok, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
		}
	}

	// Split N across conc workers
	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(ok+failed) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s N=%d c=%d go=%d ok=%d failed=%d Duration=%s Throughput=%.1f runs/s\n",
		m, *N, *conc, runtime.GOMAXPROCS(0), ok, failed, elapsed.Truncate(time.Millisecond), ops)
}
