package domain

import (
	"errors"
	"testing"

	"github.com/iamasit07/pingline/backend/internal/errs"
)

func TestConversationKey_OrderIndependent(t *testing.T) {
	t.Parallel()

	pairs := [][2]int64{
		{1, 2},
		{2, 1},
		{42, 42},
		{7, 1000000},
	}
	for _, p := range pairs {
		ab, err := ConversationKey(p[0], p[1])
		if err != nil {
			t.Fatalf("ConversationKey(%d, %d): %v", p[0], p[1], err)
		}
		ba, err := ConversationKey(p[1], p[0])
		if err != nil {
			t.Fatalf("ConversationKey(%d, %d): %v", p[1], p[0], err)
		}
		if ab != ba {
			t.Fatalf("key(%d,%d)=%s != key(%d,%d)=%s", p[0], p[1], ab, p[1], p[0], ba)
		}
		if len(ab) != 64 {
			t.Fatalf("key length = %d, want 64 hex chars", len(ab))
		}
	}
}

func TestConversationKey_DistinctPairsDistinctKeys(t *testing.T) {
	t.Parallel()

	k1, err := ConversationKey(1, 2)
	if err != nil {
		t.Fatalf("ConversationKey: %v", err)
	}
	k2, err := ConversationKey(1, 3)
	if err != nil {
		t.Fatalf("ConversationKey: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("different pairs produced the same key: %s", k1)
	}

	// {1,2} must not collide with {12} style concatenation ambiguity.
	k3, err := ConversationKey(12, 3)
	if err != nil {
		t.Fatalf("ConversationKey: %v", err)
	}
	k4, err := ConversationKey(1, 23)
	if err != nil {
		t.Fatalf("ConversationKey: %v", err)
	}
	if k3 == k4 {
		t.Fatalf("separator failed to disambiguate ids: %s", k3)
	}
}

func TestConversationKey_InvalidInput(t *testing.T) {
	t.Parallel()

	for _, p := range [][2]int64{{0, 1}, {1, 0}, {-1, 2}, {0, 0}} {
		_, err := ConversationKey(p[0], p[1])
		if !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("ConversationKey(%d, %d): got %v, want ErrInvalidArgument", p[0], p[1], err)
		}
	}
}

func TestConversationKey_Deterministic(t *testing.T) {
	t.Parallel()

	k1, _ := ConversationKey(5, 9)
	k2, _ := ConversationKey(5, 9)
	if k1 != k2 {
		t.Fatalf("key not deterministic: %s vs %s", k1, k2)
	}
}
