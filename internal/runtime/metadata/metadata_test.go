package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestNewIgnoresDanglingKey(t *testing.T) {
	md := New(MessageType, "orders.Placed", "dangling")
	if len(md) != 1 || md.MessageType() != "orders.Placed" {
		t.Fatalf("unexpected metadata %#v", md)
	}
}

func TestWithDoesNotAlias(t *testing.T) {
	original := Metadata{"a": "1"}
	updated := original.With("b", "2")

	if _, ok := original["b"]; ok {
		t.Fatal("expected original map to stay untouched")
	}
	if updated["a"] != "1" || updated["b"] != "2" {
		t.Fatalf("unexpected copy %#v", updated)
	}

	var empty Metadata
	if got := empty.With("k", "v"); got["k"] != "v" {
		t.Fatalf("expected With on nil metadata to allocate, got %#v", got)
	}
}

func TestWatermillRoundTrip(t *testing.T) {
	msg := message.NewMessage("id", nil)
	msg.Metadata = nil

	New(MessageType, "orders.Paid", CorrelationID, "c-1").Apply(msg)

	if msg.Metadata.Get(MessageType) != "orders.Paid" {
		t.Fatalf("expected message type header, got %#v", msg.Metadata)
	}

	back := FromWatermill(msg.Metadata)
	if back[CorrelationID] != "c-1" {
		t.Fatalf("expected correlation id to survive, got %#v", back)
	}
	if len(FromWatermill(nil)) != 0 {
		t.Fatal("expected empty metadata from nil headers")
	}
}
