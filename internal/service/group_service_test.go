package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/splitsync/internal/storage"
)

func TestCreateGroup(t *testing.T) {
	store := newFakeStore()
	svc := NewGroupService(store)

	group, err := svc.Create(context.Background(), "Trip", 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if group.Name != "Trip" {
		t.Errorf("expected name Trip, got %q", group.Name)
	}
	if got := store.memberCount(group.ID); got != 1 {
		t.Errorf("expected creator as sole member, got %d members", got)
	}
}

func TestRename(t *testing.T) {
	store := newFakeStore()
	svc := NewGroupService(store)
	group := store.seedGroup("Old", "")
	store.seedMember(group.ID, 1, "0")

	t.Run("member renames", func(t *testing.T) {
		renamed, err := svc.Rename(context.Background(), group.ID, "New", 1)
		if err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if renamed.Name != "New" {
			t.Errorf("expected name New, got %q", renamed.Name)
		}
		if renamed.Version != group.Version+1 {
			t.Errorf("expected version bump to %d, got %d", group.Version+1, renamed.Version)
		}
	})

	t.Run("non-member denied", func(t *testing.T) {
		if _, err := svc.Rename(context.Background(), group.ID, "Nope", 99); !errors.Is(err, ErrAccessDenied) {
			t.Errorf("expected ErrAccessDenied, got %v", err)
		}
	})
}

func TestLeave(t *testing.T) {
	t.Run("non-last member leaves, group stays", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "")
		store.seedMember(group.ID, 1, "0")
		store.seedMember(group.ID, 2, "5.00")

		if err := svc.Leave(context.Background(), group.ID, 1); err != nil {
			t.Fatalf("Leave failed: %v", err)
		}
		if !store.hasGroup(group.ID) {
			t.Error("group was deleted with a member remaining")
		}
		if got := store.memberCount(group.ID); got != 1 {
			t.Errorf("expected 1 member left, got %d", got)
		}
	})

	t.Run("last member leaves, group deleted", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "")
		store.seedMember(group.ID, 1, "0")

		if err := svc.Leave(context.Background(), group.ID, 1); err != nil {
			t.Fatalf("Leave failed: %v", err)
		}
		if store.hasGroup(group.ID) {
			t.Error("expected empty group to be deleted")
		}
	})

	t.Run("unsettled balance", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "")
		store.seedMember(group.ID, 1, "-3.50")

		if err := svc.Leave(context.Background(), group.ID, 1); !errors.Is(err, ErrSettlementRequired) {
			t.Errorf("expected ErrSettlementRequired, got %v", err)
		}
		if got := store.memberCount(group.ID); got != 1 {
			t.Errorf("member was deleted despite unsettled balance, count %d", got)
		}
	})

	t.Run("not a member", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "")

		if err := svc.Leave(context.Background(), group.ID, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("serialization conflict", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "")
		store.seedMember(group.ID, 1, "0")
		store.commitErr = storage.ErrSerialization

		if err := svc.Leave(context.Background(), group.ID, 1); !errors.Is(err, ErrConcurrentModification) {
			t.Errorf("expected ErrConcurrentModification, got %v", err)
		}
		if got := store.memberCount(group.ID); got != 1 {
			t.Errorf("failed leave mutated state, count %d", got)
		}
	})
}

func TestJoin(t *testing.T) {
	t.Run("joins via invite code", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "abc123")
		store.seedMember(group.ID, 1, "0")

		joined, err := svc.Join(context.Background(), "abc123", 2)
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		if joined.ID != group.ID {
			t.Errorf("joined wrong group: %d", joined.ID)
		}
		if got := store.memberCount(group.ID); got != 2 {
			t.Errorf("expected 2 members, got %d", got)
		}
		if !store.balance(group.ID, 2).IsZero() {
			t.Error("new member must start with zero balance")
		}
	})

	t.Run("invalid code", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)

		if _, err := svc.Join(context.Background(), "nope", 2); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second join leaves count unchanged", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		group := store.seedGroup("g", "abc123")
		store.seedMember(group.ID, 2, "0")

		if _, err := svc.Join(context.Background(), "abc123", 2); !errors.Is(err, ErrAlreadyMember) {
			t.Errorf("expected ErrAlreadyMember, got %v", err)
		}
		if got := store.memberCount(group.ID); got != 1 {
			t.Errorf("membership count changed: %d", got)
		}
	})

	t.Run("full group", func(t *testing.T) {
		store := newFakeStore()
		store.memberCap = 2
		svc := NewGroupService(store)
		group := store.seedGroup("g", "abc123")
		store.seedMember(group.ID, 1, "0")
		store.seedMember(group.ID, 2, "0")

		if _, err := svc.Join(context.Background(), "abc123", 3); !errors.Is(err, ErrGroupFull) {
			t.Errorf("expected ErrGroupFull, got %v", err)
		}
		if got := store.memberCount(group.ID); got != 2 {
			t.Errorf("membership count changed: %d", got)
		}
	})
}

func TestDeleteUserMemberships(t *testing.T) {
	t.Run("no memberships", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)

		if err := svc.DeleteUserMemberships(context.Background(), 1); err != nil {
			t.Fatalf("expected success for user with no memberships, got %v", err)
		}
	})

	t.Run("all settled", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		g1 := store.seedGroup("a", "")
		g2 := store.seedGroup("b", "")
		store.seedMember(g1.ID, 1, "0")
		store.seedMember(g2.ID, 1, "0")
		store.seedMember(g2.ID, 2, "0")

		if err := svc.DeleteUserMemberships(context.Background(), 1); err != nil {
			t.Fatalf("DeleteUserMemberships failed: %v", err)
		}
		if store.memberCount(g1.ID) != 0 || store.memberCount(g2.ID) != 1 {
			t.Errorf("unexpected member counts: %d, %d", store.memberCount(g1.ID), store.memberCount(g2.ID))
		}
	})

	t.Run("one unsettled aborts all", func(t *testing.T) {
		store := newFakeStore()
		svc := NewGroupService(store)
		g1 := store.seedGroup("a", "")
		g2 := store.seedGroup("b", "")
		store.seedMember(g1.ID, 1, "0")
		store.seedMember(g2.ID, 1, "9.99")

		if err := svc.DeleteUserMemberships(context.Background(), 1); !errors.Is(err, ErrSettlementRequired) {
			t.Fatalf("expected ErrSettlementRequired, got %v", err)
		}
		if store.memberCount(g1.ID) != 1 || store.memberCount(g2.ID) != 1 {
			t.Error("aborted deletion must not remove any membership")
		}
	})
}
