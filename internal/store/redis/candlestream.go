package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/timeframe"

	goredis "github.com/go-redis/redis/v8"
)

// candleStreamMaxLen caps each candle stream's length so Redis memory
// stays bounded; the file-backed CandleStore (internal/store/file) is
// the durable source of truth, this stream exists only to fan finalized
// candles out to strategy consumers with low latency.
const candleStreamMaxLen = 5000

// CandleStreamWriter mirrors finalized candles into per-(timeframe,symbol)
// Redis Streams, named candle:<tf>:<symbol>, as SPEC_FULL.md's domain
// stack specifies. Grounded on the teacher's Writer.writeTFCandle XADD
// idiom (internal/store/redis/writer.go), generalized from the
// teacher's fixed TF-candle shape to model.Candle and from its
// token/exchange keying to symbol/timeframe-label keying.
type CandleStreamWriter struct {
	client *goredis.Client
}

// NewCandleStreamWriter creates a writer over an already-connected client,
// shared with ActivityStore's client where the caller wants a single
// Redis connection per process.
func NewCandleStreamWriter(client *goredis.Client) *CandleStreamWriter {
	return &CandleStreamWriter{client: client}
}

func candleStreamKey(c model.Candle) string {
	return fmt.Sprintf("candle:%s:%s", c.TFLabel, c.Symbol)
}

// CandleStreamKey builds the stream key for a second-denominated
// timeframe and symbol, matching the tf-label format
// timeframe.Timeframe.String() produces (e.g. "60s") — the same label
// CandleStreamWriter.Publish derives from the candle it's given.
func CandleStreamKey(tfSeconds int, symbol string) string {
	tf, err := timeframe.New(timeframe.UnitSecond, tfSeconds)
	if err != nil {
		return fmt.Sprintf("candle:%ds:%s", tfSeconds, symbol)
	}
	return fmt.Sprintf("candle:%s:%s", tf.String(), symbol)
}

// LastClose reads the most recent candle off streamKey and returns its
// close price, used as the strategy pipeline's PriceLookup collaborator
// in lieu of a separate quote feed (out of scope per spec.md §1).
func LastClose(ctx context.Context, client *goredis.Client, streamKey string) (float64, error) {
	msgs, err := client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis candle stream: xrevrange %s: %w", streamKey, err)
	}
	if len(msgs) == 0 {
		return 0, fmt.Errorf("redis candle stream: no candles yet on %s", streamKey)
	}
	data, ok := msgs[0].Values["data"].(string)
	if !ok {
		return 0, fmt.Errorf("redis candle stream: malformed entry on %s", streamKey)
	}
	var c model.Candle
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return 0, fmt.Errorf("redis candle stream: unmarshal %s: %w", streamKey, err)
	}
	return c.Close, nil
}

// Publish XADDs a finalized candle to its stream, trimmed to
// candleStreamMaxLen via approximate MAXLEN (teacher's '~' trim mode,
// which avoids an O(n) exact trim on every write).
func (w *CandleStreamWriter) Publish(ctx context.Context, c model.Candle) error {
	if !c.IsFinal {
		return nil // only finals are mirrored; forming bars stay local to the aggregator
	}
	data := c.JSON()
	err := w.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: candleStreamKey(c),
		MaxLen: candleStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis candle stream: xadd %s: %w", candleStreamKey(c), err)
	}
	return nil
}

// CandleStreamReader consumes finalized candles from Redis Streams for a
// set of (timeframe,symbol) pairs via a consumer group, so multiple
// strategy-engine replicas can share the stream without double-processing
// a candle. Grounded on the teacher's Reader.ConsumeTFCandles consumer-
// group loop, generalized to model.Candle.
type CandleStreamReader struct {
	client        *goredis.Client
	consumerGroup string
	consumerName  string
}

// CandleStreamReaderConfig configures the consumer group identity.
type CandleStreamReaderConfig struct {
	ConsumerGroup string
	ConsumerName  string
}

// NewCandleStreamReader creates a reader over an already-connected client.
func NewCandleStreamReader(client *goredis.Client, cfg CandleStreamReaderConfig) *CandleStreamReader {
	group := cfg.ConsumerGroup
	if group == "" {
		group = "strategy-engine"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}
	return &CandleStreamReader{client: client, consumerGroup: group, consumerName: consumer}
}

// EnsureConsumerGroups creates the consumer group on each stream if it
// doesn't already exist, starting from new messages only ("$").
func (r *CandleStreamReader) EnsureConsumerGroups(ctx context.Context, streams []string) error {
	for _, stream := range streams {
		err := r.client.XGroupCreateMkStream(ctx, stream, r.consumerGroup, "$").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("redis candle stream: xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// Consume blocks reading candles from streams via XREADGROUP, sending
// each parsed candle to out and ACKing on successful decode or send.
// Returns when ctx is cancelled.
func (r *CandleStreamReader) Consume(ctx context.Context, streams []string, out chan<- model.Candle) error {
	args := make([]string, len(streams)*2)
	for i, s := range streams {
		args[i] = s
		args[len(streams)+i] = ">"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.consumerGroup,
			Consumer: r.consumerName,
			Streams:  args,
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[redis-candle-stream] xreadgroup error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				data, ok := msg.Values["data"].(string)
				if !ok {
					r.client.XAck(ctx, stream.Stream, r.consumerGroup, msg.ID)
					continue
				}
				var c model.Candle
				if err := json.Unmarshal([]byte(data), &c); err != nil {
					log.Printf("[redis-candle-stream] unmarshal error: %v", err)
					r.client.XAck(ctx, stream.Stream, r.consumerGroup, msg.ID)
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return ctx.Err()
				}
				r.client.XAck(ctx, stream.Stream, r.consumerGroup, msg.ID)
			}
		}
	}
}
