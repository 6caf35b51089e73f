package natsutil

import (
	"sort"
	"testing"

	"github.com/nats-io/nats.go"
)

func TestHeaderCarrier_SetGet(t *testing.T) {
	msg := &nats.Msg{}
	c := (*headerCarrier)(msg)

	if c.Get("traceparent") != "" {
		t.Error("empty carrier returned a value")
	}

	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("Get = %q", got)
	}
	if msg.Header.Get("Traceparent") == "" && msg.Header.Get("traceparent") == "" {
		t.Error("value not stored on the underlying message")
	}
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	c := (*headerCarrier)(&nats.Msg{})
	c.Set("k", "one")
	c.Set("k", "two")
	if got := c.Get("k"); got != "two" {
		t.Errorf("Get = %q, want two", got)
	}
}

func TestHeaderCarrier_Keys(t *testing.T) {
	c := (*headerCarrier)(&nats.Msg{})
	if len(c.Keys()) != 0 {
		t.Error("empty carrier has keys")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	keys := c.Keys()
	sort.Strings(keys)
	if len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}
}
