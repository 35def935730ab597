package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dkeye/coachline/internal/adapters/auth"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("COACHLINE_AUTH_SECRET", "cmd-secret")

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "u1", "--role", "trainer"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	p, err := auth.NewJWTVerifier("cmd-secret", nil).Resolve(context.Background(), strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("minted token should verify: %v", err)
	}
	if p.ID != "u1" || !p.IsStaff() {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "u1", "--role", "guest"})
	if err := root.Execute(); err == nil {
		t.Fatal("unknown role should fail")
	}
}
