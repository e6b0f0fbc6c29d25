// Package logging includes tests for the zap logger helpers.
package logging

import "testing"

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New("debug", true)
	if err != nil {
		t.Fatalf("New(debug, true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New("", false)
	if err != nil {
		t.Fatalf("New(\"\", false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestNewRejectsBadLevel ensures an unknown level string fails fast.
func TestNewRejectsBadLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("shouting", false); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

// TestInitReplacesGlobal verifies Init swaps the package-level logger.
func TestInitReplacesGlobal(t *testing.T) {
	logger, err := Init("info", false)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if L != logger {
		t.Fatal("expected L to be the initialized logger")
	}
}
