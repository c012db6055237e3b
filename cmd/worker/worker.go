package worker

import (
	"context"
	"hash/fnv"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/popular/internal/broker"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/models"
	"example.com/popular/internal/reconcile"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var logg = logger.New()

// EventChecker re-checks the relationship named by one edge event.
type EventChecker interface {
	CheckEvent(ctx context.Context, ev models.EdgeEvent) (reconcile.Report, error)
}

// Worker consumes edge events from Kafka and re-checks each named pair.
type Worker struct {
	checker      EventChecker
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(checker EventChecker, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		checker:      checker,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run reads events and shards them over workerCount queues by message key, so
// events about the same acting entity are checked in order by one goroutine.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting edge reconcile workers",
		zap.Int("workers", w.workerCount), zap.Int("queue_size", w.jobQueueSize))

	shards := make([]chan kafka.Message, w.workerCount)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan kafka.Message, w.jobQueueSize)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}(shards[i])
	}

	w.readLoop(ctx, shards)

	for _, ch := range shards {
		close(ch)
	}
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// shardFor picks the queue for a message. Keyless messages go to shard 0.
func shardFor(key []byte, n int) int {
	if len(key) == 0 || n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}

// readLoop reads Kafka messages and pushes each onto its shard queue.
func (w *Worker) readLoop(ctx context.Context, shards []chan kafka.Message) {
	var retry int
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			logg.Error("worker", "Kafka read error, backing off", err, zap.Duration("backoff", backoff))
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			if !waitWithContext(ctx, 50*time.Millisecond) {
				return
			}
			continue
		}

		select {
		case shards[shardFor(msg.Key, len(shards))] <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// processLoop decodes events and hands them to the checker.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, msg); err != nil {
				logg.Error("worker", "Failed to reconcile edge event", err)
			}
		}
	}
}

// process handles one message. Undecodable messages are dropped with an error;
// there is nothing to retry.
func (w *Worker) process(ctx context.Context, msg kafka.Message) error {
	ev, err := appkafka.DecodeEdgeEvent(msg)
	if err != nil {
		return err
	}

	rep, err := w.checker.CheckEvent(ctx, ev)
	if err != nil {
		return err
	}
	if rep.Repaired > 0 || rep.Dangling > 0 {
		logg.Info("worker", "Edge event reconciled",
			zap.String("kind", string(ev.Kind)), zap.Int("repaired", rep.Repaired), zap.Int("dangling", rep.Dangling))
	}
	return nil
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}
	return nil
}
