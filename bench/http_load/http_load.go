package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"example.com/popular/bench"
	"example.com/popular/bench/stats"
)

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var csvFile string
	var trimPercent float64
	var certFile, keyFile string
	var insecure bool

	flag.StringVar(&server, "server", "https://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.StringVar(&certFile, "cert", "../../certs/cert.pem", "client certificate for mTLS, empty to disable")
	flag.StringVar(&keyFile, "key", "../../certs/key.pem", "client key for mTLS")
	flag.BoolVar(&insecure, "insecure", true, "skip server certificate verification")
	flag.Parse()

	client, err := bench.NewClient(certFile, keyFile, insecure)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	// --- Create users for each goroutine ---
	fmt.Printf("Creating %d users...\n", concurrency)
	users := make([]bench.Account, concurrency)
	for i := range users {
		if users[i], err = bench.Signup(ctx, client, server, "load", i); err != nil {
			panic(fmt.Sprintf("failed to create user: %v", err))
		}
	}
	if concurrency < 2 {
		panic("need at least two users to follow each other")
	}
	fmt.Println("Users created.")

	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	var requests, successes, errors4xx, errors5xx int64
	latencySlices := make([][]float64, concurrency)

	// Each goroutine toggles a follow on a random other user, so both the
	// add path and the remove path get measured.
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			me := users[idx]
			rng := rand.New(rand.NewSource(int64(idx) + time.Now().UnixNano()))
			following := make(map[string]bool)
			var local []float64

			for time.Now().Before(stopTime) {
				target := users[rng.Intn(len(users))]
				if target.UserID == me.UserID {
					continue
				}
				method := http.MethodPost
				if following[target.UserID] {
					method = http.MethodDelete
				}

				start := time.Now()
				status, err := bench.Do(ctx, client, method, server+"/users/me/following/"+target.UserID, me.Token, nil, nil)
				local = append(local, time.Since(start).Seconds()*1000)
				atomic.AddInt64(&requests, 1)

				switch {
				case err == nil:
					atomic.AddInt64(&successes, 1)
					following[target.UserID] = method == http.MethodPost
				case status >= 500:
					atomic.AddInt64(&errors5xx, 1)
					fmt.Printf("Request error: %v\n", err)
				case status >= 400:
					atomic.AddInt64(&errors4xx, 1)
				default:
					fmt.Printf("Request error: %v\n", err)
				}
			}
			latencySlices[idx] = local
		}(i)
	}

	wg.Wait()

	var all []float64
	for _, s := range latencySlices {
		all = append(all, s...)
	}

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n",
		stats.TrimmedMean(all, trimPercent), stats.Percentile(all, 50), stats.Percentile(all, 90), stats.Percentile(all, 99))

	if err := stats.WriteCSV(csvFile, all); err != nil {
		fmt.Printf("Failed to save CSV: %v\n", err)
		return
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}
