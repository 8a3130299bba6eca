package app

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryUpdateRejectsUnknownStatus(t *testing.T) {
	store := NewMemoryStore()
	seedApp(t, store, "billing", "secret", nil)

	bad := "resurrected"
	if _, err := store.Update(context.Background(), "billing", Update{Status: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	rec, err := store.Find(context.Background(), "billing")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if rec.Status != StatusActive {
		t.Fatalf("status = %q, want %q", rec.Status, StatusActive)
	}
}

func TestMemoryUpdateLifecycleStatuses(t *testing.T) {
	store := NewMemoryStore()
	seedApp(t, store, "billing", "secret", nil)

	for _, status := range []string{StatusPending, StatusDisabled, StatusActive} {
		s := status
		rec, err := store.Update(context.Background(), "billing", Update{Status: &s})
		if err != nil {
			t.Fatalf("Update to %s: %v", status, err)
		}
		if rec.Status != status {
			t.Fatalf("status = %q, want %q", rec.Status, status)
		}
	}
}
