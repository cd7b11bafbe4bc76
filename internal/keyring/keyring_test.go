package keyring

import (
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetToken(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken("  tok_abc123  "); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}

	got, err := GetToken()
	if err != nil {
		t.Fatalf("GetToken() failed: %v", err)
	}
	if got != "tok_abc123" {
		t.Errorf("GetToken() = %q, want %q", got, "tok_abc123")
	}
}

func TestSetTokenRejectsBadInput(t *testing.T) {
	gokeyring.MockInit()

	for _, token := range []string{"", "   ", "two words"} {
		if err := SetToken(token); err == nil {
			t.Errorf("SetToken(%q) should return an error", token)
		}
	}
}

func TestGetTokenNotFound(t *testing.T) {
	gokeyring.MockInit()
	_ = DeleteToken()

	if _, err := GetToken(); err != ErrNotFound {
		t.Errorf("GetToken() error = %v, want %v", err, ErrNotFound)
	}
}

func TestDeleteToken(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken("tok_abc123"); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken() failed: %v", err)
	}
	if _, err := GetToken(); err != ErrNotFound {
		t.Errorf("after DeleteToken(), GetToken() error = %v, want %v", err, ErrNotFound)
	}
	if err := DeleteToken(); err != ErrNotFound {
		t.Errorf("second DeleteToken() error = %v, want %v", err, ErrNotFound)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("IsAvailable() = false, want true in mock mode")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("tok_abc123"); got != "********c123" {
		t.Errorf("Mask() = %q", got)
	}
	if got := Mask("abc"); got != "****" {
		t.Errorf("Mask() = %q", got)
	}
}
