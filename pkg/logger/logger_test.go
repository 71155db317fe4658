package logger

import "testing"

func TestInitWithInvalidLevelFallsBack(t *testing.T) {
	if err := Init("not-a-level"); err != nil {
		t.Fatalf("init error: %v", err)
	}

	if Logger() == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestWithModuleReturnsChild(t *testing.T) {
	if err := Init("debug"); err != nil {
		t.Fatalf("init error: %v", err)
	}

	child := WithModule("credentials")
	if child == nil {
		t.Fatal("expected a module logger")
	}
}
