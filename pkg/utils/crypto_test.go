package utils

import "testing"

func TestHashAndCheckAuthenticationKey(t *testing.T) {
	hash, err := HashAuthenticationKey("derived-key")
	if err != nil {
		t.Fatalf("failed hashing: %v", err)
	}
	if hash == "derived-key" {
		t.Fatal("expected hash to differ from input")
	}

	if !CheckAuthenticationKey("derived-key", hash) {
		t.Fatal("expected matching key to verify")
	}
	if CheckAuthenticationKey("wrong-key", hash) {
		t.Fatal("expected wrong key to fail verification")
	}
}

func TestRandomHexLengthAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref, err := RandomHex(16)
		if err != nil {
			t.Fatalf("failed generating random hex: %v", err)
		}
		if len(ref) != 32 {
			t.Fatalf("expected 32 characters, got %d", len(ref))
		}
		if seen[ref] {
			t.Fatalf("duplicate value %s", ref)
		}
		seen[ref] = true
	}
}
