package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("SEED_ADMIN_PASSWORD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.SeedAdminPassword != "" {
		t.Fatalf("expected empty SEED_ADMIN_PASSWORD when unset, got %q", cfg.SeedAdminPassword)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECEIPT_DIR", "")
	t.Setenv("LOW_STOCK_THRESHOLD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReceiptDir != "receipts" {
		t.Fatalf("expected default receipt dir, got %q", cfg.ReceiptDir)
	}
	if cfg.CurrencySymbol != "Rs." {
		t.Fatalf("expected default currency, got %q", cfg.CurrencySymbol)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_SECRET", "  0123456789abcdef0123456789abcdef  ")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("RECEIPT_PDF", "true")
	t.Setenv("LOW_STOCK_THRESHOLD", "3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.AuthSecret != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected trimmed secret, got %q", cfg.AuthSecret)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" || !cfg.ReceiptPDF || cfg.LowStockThreshold != 3 {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected invalid TTL to fall back to 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
