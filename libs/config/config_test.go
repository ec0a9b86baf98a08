package config

import (
	"testing"
	"time"
)

func TestIntRejectsNonPositive(t *testing.T) {
	t.Setenv("SLOT_STEP_MINUTES", "0")
	if _, err := Int("SLOT_STEP_MINUTES", 15); err == nil {
		t.Fatal("expected error for zero")
	}
	t.Setenv("SLOT_STEP_MINUTES", "")
	n, err := Int("SLOT_STEP_MINUTES", 15)
	if err != nil || n != 15 {
		t.Fatalf("expected fallback 15, got %d (%v)", n, err)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("DB_AUTO_MIGRATE", "yes")
	if !Bool("DB_AUTO_MIGRATE", false) {
		t.Fatal("expected true")
	}
	t.Setenv("KAFKA_CATALOG_TOPICS", " a, ,b ")
	got := List("KAFKA_CATALOG_TOPICS", "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	d, err := Duration("SHUTDOWN_TIMEOUT", time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("expected 3s, got %s (%v)", d, err)
	}
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	if _, err := Duration("SHUTDOWN_TIMEOUT", time.Second); err == nil {
		t.Fatal("expected parse error")
	}
}
