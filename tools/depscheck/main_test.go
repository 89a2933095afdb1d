package main

import (
	"strings"
	"testing"
)

func TestCheckFlagsForbiddenImports(t *testing.T) {
	input := `{"ImportPath":"swingy/server/internal/sim","Imports":["math","swingy/server/internal/net/proto"]}
{"ImportPath":"swingy/server/internal/simulator","Imports":["swingy/server/internal/net/ws"]}
{"ImportPath":"swingy/server/internal/net/proto","Imports":["swingy/server/internal/sim"]}
{"ImportPath":"swingy/server/logging/sinks","Imports":["swingy/server/internal/telemetry"]}`

	violations, err := check(strings.NewReader(input), rules)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []string{
		"swingy/server/internal/sim -> swingy/server/internal/net/proto",
		"swingy/server/logging/sinks -> swingy/server/internal/telemetry",
	}
	if len(violations) != len(want) {
		t.Fatalf("expected %v, got %v", want, violations)
	}
	for i := range want {
		if violations[i] != want[i] {
			t.Fatalf("expected %q at %d, got %q", want[i], i, violations[i])
		}
	}
}

func TestCheckRejectsBadInput(t *testing.T) {
	if _, err := check(strings.NewReader(`{"ImportPath":`), rules); err == nil {
		t.Fatalf("expected decode error")
	}
}
