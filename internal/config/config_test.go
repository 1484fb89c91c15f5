package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("Port = %d, want %d", cfg.Port, defaultPort)
	}
	if cfg.ExpectedAgencies != defaultExpectedAgencies {
		t.Fatalf("ExpectedAgencies = %d, want %d", cfg.ExpectedAgencies, defaultExpectedAgencies)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-port", "9999", "-expected-agencies", "10"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.ExpectedAgencies != 10 {
		t.Fatalf("ExpectedAgencies = %d, want 10", cfg.ExpectedAgencies)
	}
}

func TestEnvOverridesUnsetFlag(t *testing.T) {
	t.Setenv("LOTTERY_SERVER_PORT", "7000")
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 7000 {
		t.Fatalf("Port = %d, want 7000 from env", cfg.Port)
	}
}

func TestExplicitFlagWinsOverEnv(t *testing.T) {
	t.Setenv("LOTTERY_SERVER_PORT", "7000")
	cfg, err := Parse([]string{"-port", "8000"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("Port = %d, want 8000 from flag, not env", cfg.Port)
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	_, err := Parse([]string{"-port", "0"})
	if err == nil {
		t.Fatalf("expected error for port 0")
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	_, err := Parse([]string{"-log-level", "VERBOSE"})
	if err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}

func TestValidateRejectsNonPositiveExpectedAgencies(t *testing.T) {
	_, err := Parse([]string{"-expected-agencies", "0"})
	if err == nil {
		t.Fatalf("expected error for expected-agencies 0")
	}
}

func TestInvalidEnvValueIsReported(t *testing.T) {
	t.Setenv("LOTTERY_SERVER_PORT", "not-a-number")
	_, err := Parse(nil)
	if err == nil {
		t.Fatalf("expected error for invalid LOTTERY_SERVER_PORT")
	}
}
