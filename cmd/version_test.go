package cmd

import "testing"

func TestResolveVersionPrefersLinkedValue(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Fatalf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionNeverEmpty(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "dev"
	if got := resolveVersion(); got == "" {
		t.Fatal("resolveVersion() must not be empty")
	}
}
