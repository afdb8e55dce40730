package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestStore_TokenRoundTrip(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	if err := s.SetToken("https://a.example", "tok-a"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if err := s.SetToken("https://b.example", "tok-b"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	got, err := s.Token("https://a.example")
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got != "tok-a" {
		t.Errorf("Token = %q, want tok-a", got)
	}
}

func TestStore_TokenMissing(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	_, err := s.Token("https://a.example")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Token(missing) = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteToken(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))
	if err := s.SetToken("https://a.example", "tok"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteToken("https://a.example"); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if _, err := s.Token("https://a.example"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Token after delete = %v, want ErrNotFound", err)
	}
	// Deleting again is fine
	if err := s.DeleteToken("https://a.example"); err != nil {
		t.Errorf("second DeleteToken = %v, want nil", err)
	}
}
