package config

import "testing"

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresExplicitDrivers(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "production", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret", AdminKey: "k"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without STORE_DRIVER and TELEPHONY_MODE")
	}
}

func TestValidate_LocalDefaultsToSimulatedAndMemory(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Store.Driver != StoreDriverMemory {
		t.Fatalf("expected memory store default, got %q", c.Store.Driver)
	}
	if c.Telephony.Mode != TelephonyModeSimulated {
		t.Fatalf("expected simulated telephony default, got %q", c.Telephony.Mode)
	}
}

func TestValidate_TwilioModeRequiresCredentials(t *testing.T) {
	c := Config{
		App:       AppConfig{Env: "dev", Port: 8080},
		Auth:      AuthConfig{JWTSecret: "secret"},
		Telephony: TelephonyConfig{Mode: TelephonyModeTwilio},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for twilio mode without credentials")
	}
}

func TestValidate_ConcurrencyCapRequiresRedis(t *testing.T) {
	c := Config{
		App:       AppConfig{Env: "dev", Port: 8080},
		Auth:      AuthConfig{JWTSecret: "secret"},
		Telephony: TelephonyConfig{MaxConcurrentCalls: 5},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for call cap without REDIS_HOST")
	}
}
