// Command loadtest drives a running lexistat instance with a mix of term,
// cooccurrence, graph and expression queries and reports per-endpoint
// latency.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

type Config struct {
	BaseURL     string
	Field       string
	Concurrency int
	Duration    time.Duration
	Pivots      []string
}

// scenario is one endpoint of the mix. weight is its share of the requests.
type scenario struct {
	name   string
	weight int
	url    func(cfg Config, pivot string) string
}

var scenarios = []scenario{
	{"terms", 3, func(cfg Config, _ string) string {
		return fmt.Sprintf("%s/api/v1/fields/%s/terms?order=score&limit=20", cfg.BaseURL, cfg.Field)
	}},
	{"cooc", 4, func(cfg Config, pivot string) string {
		return fmt.Sprintf("%s/api/v1/fields/%s/cooc?q=%s&left=5&right=5&limit=20",
			cfg.BaseURL, cfg.Field, url.QueryEscape(pivot))
	}},
	{"graph", 2, func(cfg Config, pivot string) string {
		return fmt.Sprintf("%s/api/v1/fields/%s/graph?q=%s&nodes=30",
			cfg.BaseURL, cfg.Field, url.QueryEscape(pivot))
	}},
	{"expressions", 1, func(cfg Config, _ string) string {
		return fmt.Sprintf("%s/api/v1/fields/%s/expressions?limit=20", cfg.BaseURL, cfg.Field)
	}},
}

// schedule expands the weights into a request rotation.
func schedule() []int {
	var out []int
	for i, s := range scenarios {
		for range s.weight {
			out = append(out, i)
		}
	}
	return out
}

type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	limited   atomic.Int64
	mu        sync.Mutex
	latencies map[string][]float64
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make(map[string][]float64),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(name string, d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	switch {
	case status >= 200 && status < 300:
		s.success.Add(1)
	case status == http.StatusTooManyRequests:
		s.limited.Add(1)
	default:
		s.errors.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[name] = append(s.latencies[name], float64(d))
	s.codes[status]++
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the lexistat service")
	field := flag.String("field", "text", "field to query")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	pivots := flag.String("pivots", "time,people,world,state,government,water,house,war",
		"comma-separated pivot words for cooc and graph queries")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Field:       *field,
		Concurrency: *concurrency,
		Duration:    *duration,
		Pivots:      strings.Split(*pivots, ","),
	}

	fmt.Println("=== Lexical Statistics Load Test ===")
	fmt.Printf("Target:      %s (field %s)\n", cfg.BaseURL, cfg.Field)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Pivots:      %d\n", len(cfg.Pivots))
	fmt.Println()

	stats := run(cfg)
	if !report(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	rotation := schedule()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ctx.Err() == nil; i++ {
				sc := scenarios[rotation[i%len(rotation)]]
				pivot := cfg.Pivots[i%len(cfg.Pivots)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.url(cfg, pivot), nil)
				if err != nil {
					stats.Record(sc.name, 0, 0, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(sc.name, time.Since(start), 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(sc.name, time.Since(start), resp.StatusCode, nil)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// report prints the summary and reports whether any request completed.
func report(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Rate Limited:    %d\n", stats.limited.Load())
	fmt.Fprintf(w, "Errors:          %d\n", stats.errors.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(stats.errors.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency ===")
	fmt.Fprintf(w, "%-12s %8s %10s %10s %10s %10s %10s\n", "endpoint", "n", "mean", "p50", "p95", "p99", "stddev")
	for _, sc := range scenarios {
		l := stats.latencies[sc.name]
		if len(l) == 0 {
			continue
		}
		s := summarize(l)
		fmt.Fprintf(w, "%-12s %8d %10s %10s %10s %10s %10s\n",
			sc.name, len(l), s.mean, s.p50, s.p95, s.p99, s.stddev)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.codes[code])
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

type summary struct {
	mean, p50, p95, p99, stddev time.Duration
}

// summarize sorts latencies in place.
func summarize(latencies []float64) summary {
	sort.Float64s(latencies)
	q := func(p float64) time.Duration {
		return time.Duration(stat.Quantile(p, stat.Empirical, latencies, nil))
	}
	mean, std := stat.PopMeanStdDev(latencies, nil)
	return summary{
		mean:   time.Duration(mean),
		p50:    q(0.50),
		p95:    q(0.95),
		p99:    q(0.99),
		stddev: time.Duration(std),
	}
}
