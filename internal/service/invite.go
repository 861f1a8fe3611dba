package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitsync/internal/storage"
)

const (
	// codeAlphabet is the 62-symbol alphabet invite codes draw from.
	codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// codeLength matches the invite_code column width.
	codeLength = 10

	// defaultCodeRetries bounds regeneration on code collisions.
	defaultCodeRetries = 3
)

// InviteCodeAllocator hands out collision-tolerant invite codes.
// Codes are random, short and unique across all groups; a collision is
// handled by immediate regeneration in a fresh transaction, without backoff
// and without holding any lock between attempts.
type InviteCodeAllocator struct {
	store      storage.Store
	maxRetries int
}

// NewInviteCodeAllocator creates an allocator with the default retry budget.
func NewInviteCodeAllocator(store storage.Store) *InviteCodeAllocator {
	return &InviteCodeAllocator{store: store, maxRetries: defaultCodeRetries}
}

// Enable generates a fresh invite code for the group and stores it,
// replacing any previous code. Requires membership. Fails with
// ErrAllocationFailed once the retry budget is exhausted by collisions.
func (a *InviteCodeAllocator) Enable(ctx context.Context, groupID, requesterID int64) (string, error) {
	if err := a.checkMembership(ctx, groupID, requesterID); err != nil {
		return "", err
	}

	for attempt := 0; attempt < a.maxRetries; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		err = a.storeCode(ctx, groupID, &code)
		if err == nil {
			slog.Info("Invite code enabled", "group_id", groupID, "attempts", attempt+1)
			return code, nil
		}
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Debug("Invite code collision, regenerating", "group_id", groupID)
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	slog.Warn("Invite code retries exhausted", "group_id", groupID, "retries", a.maxRetries)
	return "", ErrAllocationFailed
}

// Disable clears the group's invite code. Idempotent.
func (a *InviteCodeAllocator) Disable(ctx context.Context, groupID, requesterID int64) error {
	if err := a.checkMembership(ctx, groupID, requesterID); err != nil {
		return err
	}
	err := a.storeCode(ctx, groupID, nil)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// storeCode writes the code in its own small transaction, so collision
// retries never hold a lock across attempts.
func (a *InviteCodeAllocator) storeCode(ctx context.Context, groupID int64, code *string) error {
	tx, err := a.store.Begin(ctx, storage.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SetInviteCode(ctx, groupID, code); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (a *InviteCodeAllocator) checkMembership(ctx context.Context, groupID, requesterID int64) error {
	tx, err := a.store.Begin(ctx, storage.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	return requireMember(ctx, tx, groupID, requesterID)
}

// randomCode builds a code from crypto/rand bytes. Bytes >= 248 are
// rejected: 248 is the largest multiple of 62 below 256, so taking the
// remainder past it would bias the start of the alphabet.
func randomCode(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
