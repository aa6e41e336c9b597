package identity

import (
	"net/http/httptest"
	"testing"
)

func TestActorIDStable(t *testing.T) {
	a := httptest.NewRequest("GET", "/", nil)
	a.RemoteAddr = "203.0.113.9:1234"
	a.Header.Set("User-Agent", "browser/1.0")

	b := httptest.NewRequest("GET", "/", nil)
	b.RemoteAddr = "203.0.113.9:9999" // same host, different port
	b.Header.Set("User-Agent", "browser/1.0")

	if ActorID(a) != ActorID(b) {
		t.Fatal("same fingerprint should yield the same actor id")
	}
}

func TestActorIDVariesByClient(t *testing.T) {
	a := httptest.NewRequest("GET", "/", nil)
	a.RemoteAddr = "203.0.113.9:1234"
	a.Header.Set("User-Agent", "browser/1.0")

	b := httptest.NewRequest("GET", "/", nil)
	b.RemoteAddr = "203.0.113.10:1234"
	b.Header.Set("User-Agent", "browser/1.0")

	c := httptest.NewRequest("GET", "/", nil)
	c.RemoteAddr = "203.0.113.9:1234"
	c.Header.Set("User-Agent", "browser/2.0")

	if ActorID(a) == ActorID(b) {
		t.Fatal("different ip should yield a different actor id")
	}
	if ActorID(a) == ActorID(c) {
		t.Fatal("different user agent should yield a different actor id")
	}
}

func TestActorIDHonorsForwardedFor(t *testing.T) {
	direct := httptest.NewRequest("GET", "/", nil)
	direct.RemoteAddr = "10.0.0.1:1234"
	direct.Header.Set("User-Agent", "browser/1.0")
	direct.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	viaOtherProxy := httptest.NewRequest("GET", "/", nil)
	viaOtherProxy.RemoteAddr = "10.0.0.2:5678"
	viaOtherProxy.Header.Set("User-Agent", "browser/1.0")
	viaOtherProxy.Header.Set("X-Forwarded-For", "203.0.113.9")

	if ActorID(direct) != ActorID(viaOtherProxy) {
		t.Fatal("forwarded-for client should get the same id regardless of proxy hop")
	}
}

func TestActorIDLength(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if got := ActorID(r); len(got) != 32 {
		t.Fatalf("expected a 32-char hex id, got %q", got)
	}
}
