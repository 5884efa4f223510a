package main

import (
	"testing"
	"time"
)

func TestModeValue(t *testing.T) {
	if got := modeValue("Production", ""); got != "production" {
		t.Fatalf("expected production, got %q", got)
	}
	if got := modeValue("", " development "); got != "development" {
		t.Fatalf("expected development, got %q", got)
	}
	if got := modeValue("", ""); got != "development" {
		t.Fatalf("expected default development mode, got %q", got)
	}
}

func TestResolveListenAddr(t *testing.T) {
	if got := resolveListenAddr(":9090", "development", ":7070"); got != ":9090" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := resolveListenAddr("", "development", ":7070"); got != ":7070" {
		t.Fatalf("expected env fallback, got %q", got)
	}
	if got := resolveListenAddr("", "production", ""); got != ":80" {
		t.Fatalf("expected production default :80, got %q", got)
	}
	if got := resolveListenAddr("", "development", ""); got != ":8080" {
		t.Fatalf("expected development default :8080, got %q", got)
	}
}

func TestResolveStorageDriver(t *testing.T) {
	driver, err := resolveStorageDriver("Postgres", "", "")
	if err != nil || driver != "postgres" {
		t.Fatalf("expected postgres from flag, got %q err %v", driver, err)
	}
	driver, err = resolveStorageDriver("", "memory", "postgres://example")
	if err != nil || driver != "memory" {
		t.Fatalf("expected env to beat DSN inference, got %q err %v", driver, err)
	}
	driver, err = resolveStorageDriver("", "", "postgres://example")
	if err != nil || driver != "postgres" {
		t.Fatalf("expected DSN to imply postgres, got %q err %v", driver, err)
	}
	driver, err = resolveStorageDriver("", "", "")
	if err != nil || driver != "memory" {
		t.Fatalf("expected memory default, got %q err %v", driver, err)
	}
}

func TestResolveTokenStoreDriver(t *testing.T) {
	if got := resolveTokenStoreDriver("Redis", "", ""); got != "redis" {
		t.Fatalf("expected redis from flag, got %q", got)
	}
	if got := resolveTokenStoreDriver("", "", "127.0.0.1:6379"); got != "redis" {
		t.Fatalf("expected redis address to imply redis, got %q", got)
	}
	if got := resolveTokenStoreDriver("", "", ""); got != "memory" {
		t.Fatalf("expected memory default, got %q", got)
	}
}

func TestValidateProductionDatastore(t *testing.T) {
	if err := validateProductionDatastore("memory", ""); err == nil {
		t.Fatal("expected error for memory driver in production")
	}
	if err := validateProductionDatastore("postgres", ""); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
	if err := validateProductionDatastore("postgres", "postgres://example"); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" a, b ,, c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected result %v", got)
	}
	if got := splitAndTrim("  "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "value", "other"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := firstNonEmpty("", "  "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestResolveDuration(t *testing.T) {
	if got := resolveDuration(5*time.Second, "ASSETGATE_TEST_UNSET", time.Minute); got != 5*time.Second {
		t.Fatalf("expected flag value, got %v", got)
	}
	t.Setenv("ASSETGATE_TEST_DURATION", "30s")
	if got := resolveDuration(0, "ASSETGATE_TEST_DURATION", time.Minute); got != 30*time.Second {
		t.Fatalf("expected env value, got %v", got)
	}
	if got := resolveDuration(0, "ASSETGATE_TEST_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestResolveInt64(t *testing.T) {
	if got := resolveInt64(42, "ASSETGATE_TEST_UNSET"); got != 42 {
		t.Fatalf("expected flag value, got %d", got)
	}
	t.Setenv("ASSETGATE_TEST_BYTES", "1048576")
	if got := resolveInt64(0, "ASSETGATE_TEST_BYTES"); got != 1048576 {
		t.Fatalf("expected env value, got %d", got)
	}
	if got := resolveInt64(0, "ASSETGATE_TEST_UNSET"); got != 0 {
		t.Fatalf("expected zero default, got %d", got)
	}
}

func TestResolveDataDir(t *testing.T) {
	if got := resolveDataDir("/srv/assets", "/env/assets"); got != "/srv/assets" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := resolveDataDir("", "/env/assets"); got != "/env/assets" {
		t.Fatalf("expected env fallback, got %q", got)
	}
	if got := resolveDataDir("", ""); got != "data/assets" {
		t.Fatalf("expected default data dir, got %q", got)
	}
}
