package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "bilancio", queueName: "journal", logger: log.Discard()}

	if client.isCircuitOpen() {
		t.Error("circuit should start closed")
	}

	for range maxFailures {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Error("circuit should open after max failures")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Error("success should close the circuit and reset failures")
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Error("circuit should half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Errorf("state = %d, want StateHalfOpen", atomic.LoadInt32(&client.state))
	}
}

func TestClient_PublishJournalAppended(t *testing.T) {
	client := &Client{exchangeName: "bilancio", queueName: "journal", logger: log.Discard()}
	msg := NewJournalAppendedMessage(core.TransactionRecord{ID: "t1", Serial: 7})

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	if err := client.PublishJournalAppended(context.Background(), msg); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("PublishJournalAppended() = %v, want ErrCircuitOpen", err)
	}

	atomic.StoreInt32(&client.state, StateClosed)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishJournalAppended(ctx, msg); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishJournalAppended() = %v, want context.Canceled", err)
	}

	// No channel: the failure counts toward the breaker.
	if err := client.PublishJournalAppended(context.Background(), msg); err == nil {
		t.Error("PublishJournalAppended() without a channel should fail")
	}
	if atomic.LoadInt64(&client.failureCount) != 1 {
		t.Errorf("failureCount = %d, want 1", atomic.LoadInt64(&client.failureCount))
	}
}

func TestJournalAppendedMessage_JSON(t *testing.T) {
	msg := NewJournalAppendedMessage(core.TransactionRecord{ID: "t1", Serial: 7, CurrencyID: "eur", Epoch: 1700000000000})
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("NewJournalAppendedMessage() = %+v", msg)
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := JournalAppendedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("JournalAppendedMessageFromJSON() error = %v", err)
	}
	if got.TransactionID != "t1" || got.Serial != 7 || got.Epoch != msg.Epoch || !got.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip = %+v, want %+v", got, msg)
	}

	for _, bad := range []string{`{"serial": "x"}`, `{"serial": 1}`, `not json`} {
		if _, err := JournalAppendedMessageFromJSON([]byte(bad)); err == nil {
			t.Errorf("JournalAppendedMessageFromJSON(%s) succeeded", bad)
		}
	}
}

type fakeDelivery struct{ settled string }

func (d *fakeDelivery) Ack(bool) error { d.settled = "ack"; return nil }
func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.settled = "nack"
	if requeue {
		d.settled += "+requeue"
	}
	return nil
}
func (d *fakeDelivery) Reject(bool) error { d.settled = "reject"; return nil }

func TestHandle(t *testing.T) {
	body, _ := NewJournalAppendedMessage(core.TransactionRecord{ID: "t1", Serial: 1}).ToJSON()
	ok := func(context.Context, *JournalAppendedMessage) error { return nil }
	fail := func(context.Context, *JournalAppendedMessage) error { return errors.New("store down") }

	tests := []struct {
		name    string
		body    []byte
		handler func(context.Context, *JournalAppendedMessage) error
		want    string
	}{
		{"success acks", body, ok, "ack"},
		{"handler error requeues", body, fail, "nack+requeue"},
		{"malformed payload rejects", []byte("{"), ok, "reject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDelivery{}
			Handle(context.Background(), log.Discard(), d, tt.body, tt.handler)
			if !strings.EqualFold(d.settled, tt.want) {
				t.Errorf("settled = %q, want %q", d.settled, tt.want)
			}
		})
	}
}
