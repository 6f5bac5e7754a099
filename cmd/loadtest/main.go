// Command loadtest drives the emote search API with concurrent workers and
// prints latency percentiles and status code counts.
//
// Queries are sampled from the emote registry when -registry points at one;
// each worker follows next_page_token for up to -pages pages per query.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -registry emote-registry.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	MaxPages    int
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	emptyPages    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var fallbackQueries = []string{"pog", "kek", "pepe", "cat", "dance", "lul", "sad", "hype", "a.b*", ""}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the emote bot")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	maxPages := flag.Int("pages", 3, "pages to follow per query")
	registryPath := flag.String("registry", "", "emote registry to sample queries from")
	flag.Parse()

	queries := fallbackQueries
	if *registryPath != "" {
		cat, err := catalog.Load(*registryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading registry: %v\n", err)
			os.Exit(1)
		}
		queries = sampleQueries(cat, 200)
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		MaxPages:    *maxPages,
		Queries:     queries,
	}

	fmt.Println("=== Emote Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// sampleQueries takes the first three letters of up to n distinct emote
// names, which is what users type before picking a result.
func sampleQueries(cat *catalog.Catalog, n int) []string {
	seen := make(map[string]struct{})
	var queries []string
	for e := range cat.Eligible() {
		q := strings.ToLower(e.Name)
		if len(q) > 3 {
			q = q[:3]
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
		if len(queries) >= n {
			break
		}
	}
	if len(queries) == 0 {
		return fallbackQueries
	}
	return queries
}

type searchPage struct {
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"next_page_token"`
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			queryIdx := w
			for ctx.Err() == nil {
				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++
				token := ""
				for page := 0; page < cfg.MaxPages && ctx.Err() == nil; page++ {
					next, more := fetchPage(ctx, client, cfg.BaseURL, query, token, stats)
					if !more {
						break
					}
					token = next
				}
			}
			return nil
		})
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

	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// fetchPage requests one page and reports the next token and whether the
// page was full enough to be worth following.
func fetchPage(ctx context.Context, client *http.Client, baseURL, query, token string, stats *Stats) (string, bool) {
	params := url.Values{"q": {query}}
	if token != "" {
		params.Set("page", token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		stats.RecordRequest(0, 0, err)
		return "", false
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.RecordRequest(duration, 0, err)
		}
		return "", false
	}
	defer resp.Body.Close()
	stats.RecordRequest(duration, resp.StatusCode, nil)

	var page searchPage
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&page) != nil {
		return "", false
	}
	if len(page.Results) == 0 {
		stats.emptyPages.Add(1)
		return "", false
	}
	return page.NextPageToken, true
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	fmt.Printf("Empty Pages:     %d\n", stats.emptyPages.Load())

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the bot running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
