package session

import (
	"context"
	"errors"
	"log/slog"
)

// Controller enforces the per-user session cap and owns targeted
// invalidation.
type Controller struct {
	store      Store
	maxAllowed int64
}

// NewController creates a controller evicting above maxAllowed sessions per
// user.
func NewController(store Store, maxAllowed int64) *Controller {
	return &Controller{store: store, maxAllowed: maxAllowed}
}

// EnforceCapacity deletes the user's soonest-to-expire session (excluding
// currentSessionID) when the session count exceeds the cap. At most one
// eviction per invocation.
//
// This runs asynchronously after login and is best-effort: the
// count it sees is eventually consistent (the just-created session may not
// be included yet), and every request refreshes expiry, so the current
// session is never the soonest-expiring one in practice. Failures are
// logged and swallowed; an eviction problem must never fail the login that
// triggered it.
func (c *Controller) EnforceCapacity(ctx context.Context, userID int64, currentSessionID string) {
	count, err := c.store.Count(ctx, userID)
	if err != nil {
		slog.Error("Session count failed", "user_id", userID, "error", err)
		return
	}
	if count <= c.maxAllowed {
		return
	}

	victim, err := c.store.FirstExpiring(ctx, userID, currentSessionID)
	if err != nil {
		slog.Error("Session eviction lookup failed", "user_id", userID, "error", err)
		return
	}
	if victim == nil {
		return
	}
	if err := c.store.Delete(ctx, victim.ID); err != nil {
		slog.Error("Session eviction failed", "user_id", userID, "error", err)
		return
	}
	slog.Info("Evicted session over capacity",
		"user_id", userID,
		"device", victim.Device,
		"count", count,
	)
}

// InvalidateByDevice deletes the session of one of the user's devices.
//
// An unknown device id, or one belonging to a different user, is a silent
// no-op: the caller learns nothing about other users' device ids. Targeting
// the caller's own current session is rejected; logout is the proper way
// out of it.
func (c *Controller) InvalidateByDevice(ctx context.Context, userID int64, deviceID, currentSessionID string) error {
	rec, err := c.store.GetByDeviceID(ctx, deviceID)
	if errors.Is(err, ErrNotFound) {
		slog.Debug("Invalidation for unknown device id", "user_id", userID)
		return nil
	}
	if err != nil {
		return err
	}
	if rec.ID == currentSessionID {
		return ErrInvalidOperation
	}
	if rec.UserID != userID {
		slog.Warn("User tried to invalidate a session that is not theirs", "user_id", userID)
		return nil
	}
	return c.store.Delete(ctx, rec.ID)
}

// InvalidateAllExcept deletes every session of the user except the current
// one. Used for "log out other devices" and during account deletion.
func (c *Controller) InvalidateAllExcept(ctx context.Context, userID int64, currentSessionID string) error {
	return c.store.DeleteAllExcept(ctx, userID, currentSessionID)
}
