package orchestrator

import "testing"

func TestMessage(t *testing.T) {
	msg := Message{Role: "user", Content: "Hello"}
	if msg.Role != "user" {
		t.Errorf("Expected role 'user', got '%s'", msg.Role)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", cfg.SampleRate)
	}
	if cfg.MaxContextMessages != 20 {
		t.Errorf("Expected max messages 20, got %d", cfg.MaxContextMessages)
	}
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = &NoOpLogger{}
	// Must not panic regardless of args shape.
	l.Debug("x")
	l.Info("x", "k", "v")
	l.Warn("x", "k", 1, "k2")
	l.Error("x", "err", nil)
}
