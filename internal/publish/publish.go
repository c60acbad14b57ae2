// Package publish emits pipeline run events to a Redis stream.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeasonStream is the stream every season result is appended to.
const SeasonStream = "nfl.pipeline.seasons"

// Redis appends JSON events to a Redis stream with XADD.
type Redis struct {
	client *redis.Client
	stream string
}

// NewRedis connects to redisURL and verifies the connection with PING.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, stream: SeasonStream}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Publish appends v to the stream.
func (r *Redis) Publish(ctx context.Context, v any) error {
	values, err := fields(v, time.Now())
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: values,
	}).Err()
}

func fields(v any, at time.Time) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return map[string]any{
		"data":      string(data),
		"timestamp": at.Unix(),
	}, nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, any) error { return nil }
