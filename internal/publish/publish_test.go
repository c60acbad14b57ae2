package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestFieldsEncodesJSON(t *testing.T) {
	at := time.Unix(1700000000, 0)
	got, err := fields(map[string]int{"season": 2024}, at)
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	var back map[string]int
	if err := json.Unmarshal([]byte(got["data"].(string)), &back); err != nil {
		t.Fatalf("data is not JSON: %v", err)
	}
	if back["season"] != 2024 {
		t.Errorf("season = %d, want 2024", back["season"])
	}
	if got["timestamp"] != int64(1700000000) {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
}

func TestFieldsRejectsUnencodable(t *testing.T) {
	if _, err := fields(make(chan int), time.Now()); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestNewRedisBadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNopPublish(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), struct{}{}); err != nil {
		t.Errorf("Nop.Publish: %v", err)
	}
}
