package messaging

import (
	"context"
	"testing"
	"time"

	contractsv1 "dropvest/contracts/gen/events/v1"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(nil)
	received := make(chan contractsv1.Envelope, 1)
	if err := bus.Subscribe(ctx, "airdrop.claims", "test", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "airdrop.claims", contractsv1.Envelope{
		EventID:   "evt-1",
		EventType: contractsv1.EventTypeAirdropClaimed,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "evt-1" {
			t.Fatalf("unexpected event id %s", event.EventID)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestBusPublishWithoutSubscribersSucceeds(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Publish(context.Background(), "vesting.events", contractsv1.Envelope{EventID: "evt-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
