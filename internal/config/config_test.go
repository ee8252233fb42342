package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STAND_ID", "")
	t.Setenv("REPORT_TTL_SECONDS", "")
	t.Setenv("LOW_STOCK_THRESHOLD", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.StandID != "main-stand" {
		t.Fatalf("expected default stand id, got %q", cfg.StandID)
	}
	if cfg.ReportTTLSeconds != 15 {
		t.Fatalf("expected default report ttl 15, got %d", cfg.ReportTTLSeconds)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("expected default low stock threshold 5, got %d", cfg.LowStockThreshold)
	}
}

func TestLoadRejectsBadNumericValues(t *testing.T) {
	t.Setenv("REPORT_TTL_SECONDS", "not-a-number")
	t.Setenv("LOW_STOCK_THRESHOLD", "-3")

	cfg := Load()
	if cfg.ReportTTLSeconds != 15 {
		t.Fatalf("expected ttl fallback 15, got %d", cfg.ReportTTLSeconds)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("expected low stock fallback 5, got %d", cfg.LowStockThreshold)
	}
}

func TestAddress(t *testing.T) {
	cfg := Config{Port: "9090"}
	if got := cfg.Address(); got != ":9090" {
		t.Fatalf("expected :9090, got %q", got)
	}
}
