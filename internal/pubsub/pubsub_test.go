package pubsub

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestEventSubject(t *testing.T) {
	if got := EventSubject("a1b2c3"); got != "match.a1b2c3.events" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestConnectUnreachable(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected an error connecting to a closed port")
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(EventSubject("x"), []byte("{}")); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
	p.Close()
}
