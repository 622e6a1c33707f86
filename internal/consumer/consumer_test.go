package consumer

import (
	"testing"

	"github.com/myasnails/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

func TestDedupeKey_PrefersEventIDHeader(t *testing.T) {
	msg := kafka.Message{
		Topic: "booking.confirmed.v1",
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-42")},
		},
	}
	if got := dedupeKey(kafkax.ExtractEventMeta(msg), msg); got != "evt-42" {
		t.Fatalf("want evt-42, got %q", got)
	}
}

func TestDedupeKey_HeaderlessMessagesStayDistinct(t *testing.T) {
	// A producer outside the outbox sets neither the header nor a key. Every
	// such delivery must get its own dedupe identity or the second one ever
	// seen is dropped as a duplicate.
	first := kafka.Message{Topic: "booking.confirmed.v1", Partition: 0, Offset: 10}
	second := kafka.Message{Topic: "booking.confirmed.v1", Partition: 0, Offset: 11}

	a := dedupeKey(kafkax.ExtractEventMeta(first), first)
	b := dedupeKey(kafkax.ExtractEventMeta(second), second)
	if a == "" || b == "" {
		t.Fatal("dedupe key must never be empty")
	}
	if a == b {
		t.Fatalf("distinct offsets must not share a dedupe key: %q", a)
	}

	// Redelivery of the same offset still dedupes.
	if again := dedupeKey(kafkax.ExtractEventMeta(first), first); again != a {
		t.Fatalf("same offset must keep the same key: %q vs %q", a, again)
	}
}
