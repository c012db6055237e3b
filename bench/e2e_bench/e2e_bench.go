package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"example.com/popular/bench"
	"example.com/popular/bench/stats"
)

type comment struct {
	ID string `json:"id"`
}

type node struct {
	Comment comment `json:"comment"`
	Replies []*node `json:"replies"`
}

func countNodes(ns []*node) int {
	n := 0
	for _, c := range ns {
		n += 1 + countNodes(c.Replies)
	}
	return n
}

func main() {
	// CLI flags
	var serverAddr, certFile, keyFile string
	var U, C, depth, concurrency, lookups int
	var insecure bool

	flag.StringVar(&serverAddr, "server", "https://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 20, "number of commenting users")
	flag.IntVar(&C, "comments", 200, "number of comments to post")
	flag.IntVar(&depth, "depth", 50, "length of the reply chain used for root lookups")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting and lookups")
	flag.IntVar(&lookups, "lookups", 500, "number of root lookups to time")
	flag.StringVar(&certFile, "cert", "../../certs/cert.pem", "client certificate for mTLS, empty to disable")
	flag.StringVar(&keyFile, "key", "../../certs/key.pem", "client key for mTLS")
	flag.BoolVar(&insecure, "insecure", true, "skip server certificate verification")
	flag.Parse()

	ctx := context.Background()
	client, err := bench.NewClient(certFile, keyFile, insecure)
	if err != nil {
		panic(err)
	}

	// --- 1) Create users ---
	fmt.Printf("Creating %d users...\n", U)
	users := make([]bench.Account, U)
	for i := range users {
		if users[i], err = bench.Signup(ctx, client, serverAddr, "e2e", i); err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}
	}

	// --- 2) Create the feed everyone comments on ---
	var feed struct {
		ID string `json:"id"`
	}
	_, err = bench.Do(ctx, client, http.MethodPost, serverAddr+"/feeds", users[0].Token,
		map[string]any{"title": "e2e thread", "board": "free", "content": "bench"}, &feed)
	if err != nil {
		fmt.Printf("create feed error: %v\n", err)
		os.Exit(1)
	}

	// --- 3) Post comments concurrently onto the feed or an earlier comment ---
	fmt.Printf("Posting %d comments with concurrency %d...\n", C, concurrency)
	var mu sync.Mutex
	posted := []string{}
	var postLat []float64
	var failed int

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i := 0; i < C; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			parent := map[string]string{"type": "Feed", "id": feed.ID}
			mu.Lock()
			if len(posted) > 0 && rand.Intn(2) == 0 {
				parent = map[string]string{"type": "Comment", "id": posted[rand.Intn(len(posted))]}
			}
			mu.Unlock()

			author := users[rand.Intn(len(users))]
			var c comment
			start := time.Now()
			_, err := bench.Do(ctx, client, http.MethodPost, serverAddr+"/comments", author.Token,
				map[string]any{"content": fmt.Sprintf("comment %d", i), "parent": parent}, &c)
			lat := time.Since(start).Seconds() * 1000

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Printf("comment error: %v\n", err)
				return
			}
			posted = append(posted, c.ID)
			postLat = append(postLat, lat)
		}(i)
	}
	wg.Wait()

	// --- 4) Every accepted comment must be reachable from the feed ---
	var thread []*node
	if _, err := bench.Do(ctx, client, http.MethodGet, serverAddr+"/feeds/"+feed.ID+"/comments", "", nil, &thread); err != nil {
		fmt.Printf("thread error: %v\n", err)
		os.Exit(1)
	}
	reachable := countNodes(thread)
	fmt.Printf("Comments posted=%d failed=%d reachable=%d lost=%d\n", len(posted), failed, reachable, len(posted)-reachable)

	// --- 5) Build a deep reply chain and time root lookups from its leaf ---
	fmt.Printf("Building a reply chain of depth %d...\n", depth)
	leaf := feed.ID
	kind := "Feed"
	for i := 0; i < depth; i++ {
		var c comment
		_, err := bench.Do(ctx, client, http.MethodPost, serverAddr+"/comments", users[0].Token,
			map[string]any{"content": fmt.Sprintf("depth %d", i), "parent": map[string]string{"type": kind, "id": leaf}}, &c)
		if err != nil {
			fmt.Printf("chain error: %v\n", err)
			os.Exit(1)
		}
		leaf, kind = c.ID, "Comment"
	}

	var rootLat []float64
	var rootMu sync.Mutex
	for i := 0; i < lookups; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			var root struct {
				ID string `json:"id"`
			}
			start := time.Now()
			_, err := bench.Do(ctx, client, http.MethodGet, serverAddr+"/comments/"+leaf+"/root", "", nil, &root)
			lat := time.Since(start).Seconds() * 1000
			if err != nil || root.ID != feed.ID {
				fmt.Printf("root lookup mismatch: %v %q\n", err, root.ID)
				return
			}
			rootMu.Lock()
			rootLat = append(rootLat, lat)
			rootMu.Unlock()
		}()
	}
	wg.Wait()

	// --- 6) Compute latency statistics and export to CSV ---
	report := func(name string, lat []float64) {
		if len(lat) == 0 {
			fmt.Printf("%s: no samples\n", name)
			return
		}
		fmt.Printf("%s (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", name,
			len(lat), stats.TrimmedMean(lat, 1.0), stats.Percentile(lat, 50), stats.Percentile(lat, 90), stats.Percentile(lat, 99))
	}
	report("Comment create", postLat)
	report("Root lookup", rootLat)

	if err := stats.WriteCSV("e2e_latencies.csv", rootLat); err != nil {
		fmt.Printf("save csv error: %v\n", err)
		return
	}
	fmt.Println("Saved e2e_latencies.csv")
}
