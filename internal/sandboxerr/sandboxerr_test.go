package sandboxerr

import (
	"errors"
	"strings"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(KindNotFound, "sandbox not found: x")

	if !Is(err, KindNotFound) {
		t.Fatal("expected Is to match KindNotFound")
	}
	if Is(err, KindCapacity) {
		t.Fatal("Is must not match a different kind")
	}
	if Is(errors.New("plain"), KindNotFound) {
		t.Fatal("Is must not match a plain error")
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindConnection, "agent connect timeout", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("message missing cause: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "connection") {
		t.Fatalf("message missing kind: %s", err.Error())
	}
}

func TestInvalidStateMessage(t *testing.T) {
	err := InvalidState("Destroyed")

	if !Is(err, KindInvalidState) {
		t.Fatal("expected invalid-state kind")
	}
	if !strings.Contains(err.Error(), "expected Ready") || !strings.Contains(err.Error(), "Destroyed") {
		t.Fatalf("message must name expected and actual state: %s", err.Error())
	}
}

func TestRPCCarriesCode(t *testing.T) {
	err := RPC(-32601, "method not found: bogus")

	if !Is(err, KindRPC) {
		t.Fatal("expected rpc kind")
	}
	if !strings.Contains(err.Error(), "-32601") {
		t.Fatalf("message must carry the code: %s", err.Error())
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidConfig: "invalid_config",
		KindVM:            "vm",
		KindConnection:    "connection",
		KindRPC:           "rpc",
		KindDispatch:      "dispatch",
		KindNotFound:      "not_found",
		KindInvalidState:  "invalid_state",
		KindCapacity:      "capacity",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("kind %d: expected %s, got %s", kind, want, kind.String())
		}
	}
}
