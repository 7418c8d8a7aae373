package logger

import "testing"

func TestGetInitializesLogger(t *testing.T) {
	if Get() == nil {
		t.Fatal("expected a logger before Init")
	}
	// Init after Get is a no-op and must not replace the logger.
	before := Get()
	Init("production", "error")
	if Get() != before {
		t.Error("expected Init to run only once")
	}
}

func TestNamed(t *testing.T) {
	if Named("autosave") == nil {
		t.Fatal("expected a named logger")
	}
	Sync()
}
