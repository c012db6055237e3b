package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/popular/internal/broker"
	"example.com/popular/internal/models"
	"github.com/segmentio/kafka-go"
)

// Floods the edge event topic so the reconcile worker can be measured in isolation.
func main() {
	var total, batchSize, numWorkers, pairs int
	var broker, topic string

	flag.IntVar(&total, "n", 100000, "total number of events to send")
	flag.IntVar(&batchSize, "batch", 100, "batch size for sending events")
	flag.IntVar(&numWorkers, "workers", 4, "number of parallel goroutines")
	flag.IntVar(&pairs, "pairs", 1000, "number of distinct user pairs to reference")
	flag.StringVar(&broker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "edge-events", "edge event topic")
	flag.Parse()

	w := appkafka.NewKafkaWriter(appkafka.KafkaConfig{
		Brokers:      []string{broker},
		Topic:        topic,
		WriteTimeout: 10 * time.Second,
	})
	defer w.Close()

	// Pairs reference ids that do not exist, so the worker exercises the full
	// lookup path without mutating real data.
	type pair struct{ from, to string }
	ps := make([]pair, pairs)
	for i := range ps {
		ps[i] = pair{models.NewID(), models.NewID()}
	}
	kinds := []models.EdgeKind{models.EdgeFollow, models.EdgeScrap, models.EdgeLike, models.EdgeReport}

	start := time.Now()
	var successCount, failCount uint64

	jobs := make(chan int, total)
	var wg sync.WaitGroup

	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)

			flush := func() {
				if len(batch) == 0 {
					return
				}
				if err := w.WriteMessages(context.Background(), batch...); err != nil {
					atomic.AddUint64(&failCount, uint64(len(batch)))
					fmt.Printf("write error: %v\n", err)
				} else {
					atomic.AddUint64(&successCount, uint64(len(batch)))
				}
				batch = batch[:0]
			}

			for i := range jobs {
				p := ps[i%len(ps)]
				ev := models.EdgeEvent{
					Kind: kinds[rand.Intn(len(kinds))],
					Op:   models.OpAdd,
					From: p.from,
					To:   p.to,
					At:   time.Now().UTC(),
				}
				msg, err := appkafka.EncodeEdgeEvent(ev)
				if err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("marshal error: %v\n", err)
					continue
				}
				batch = append(batch, msg)
				if len(batch) >= batchSize {
					flush()
				}
			}
			flush()
		}()
	}

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("Total events: %d\n", total)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
