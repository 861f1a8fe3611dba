package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/service"
	"github.com/mmynk/splitsync/internal/session"
	"github.com/mmynk/splitsync/internal/storage"
)

// providerLocal tags sessions created through password login.
const providerLocal = "local"

// Service orchestrates login, logout, session management and account
// deletion across the relational store and the session store.
type Service struct {
	store      storage.Store
	sessions   session.Store
	capacity   *session.Controller
	groups     *service.GroupService
	jwt        *JWTManager
	sessionTTL time.Duration
}

// NewService wires the auth flows together.
func NewService(
	store storage.Store,
	sessions session.Store,
	capacity *session.Controller,
	groups *service.GroupService,
	jwtManager *JWTManager,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		store:      store,
		sessions:   sessions,
		capacity:   capacity,
		groups:     groups,
		jwt:        jwtManager,
		sessionTTL: sessionTTL,
	}
}

// Login verifies credentials, creates a device session and returns a bearer
// token bound to it. Capacity enforcement runs asynchronously: it is
// best-effort and must never fail the login itself.
func (s *Service) Login(ctx context.Context, email, password, device string) (string, *models.SessionRecord, error) {
	authenticator := NewPasswordAuthenticator(s.store)
	user, err := authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	deviceID, err := newDeviceID()
	if err != nil {
		return "", nil, err
	}
	rec := &models.SessionRecord{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		DeviceID:  deviceID,
		Device:    device,
		Provider:  providerLocal,
		LoginDate: time.Now(),
	}
	if err := s.sessions.Create(ctx, rec, s.sessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.jwt.Generate(user.ID, rec.ID, rec.DeviceID)
	if err != nil {
		return "", nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.capacity.EnforceCapacity(ctx, user.ID, rec.ID)
	}()

	slog.Info("User logged in", "user_id", user.ID, "device", device)
	return token, rec, nil
}

// Logout deletes the current session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// Sessions lists the user's active sessions.
func (s *Service) Sessions(ctx context.Context, userID int64) ([]*models.SessionRecord, error) {
	return s.sessions.List(ctx, userID)
}

// InvalidateDevice logs out one of the user's other devices.
func (s *Service) InvalidateDevice(ctx context.Context, userID int64, deviceID, currentSessionID string) error {
	return s.capacity.InvalidateByDevice(ctx, userID, deviceID, currentSessionID)
}

// InvalidateOtherSessions logs the user out everywhere except the current
// device.
func (s *Service) InvalidateOtherSessions(ctx context.Context, userID int64, currentSessionID string) error {
	return s.capacity.InvalidateAllExcept(ctx, userID, currentSessionID)
}

// DeleteAccount removes the user's memberships (all balances must be
// settled), anonymizes the user row and invalidates their other sessions.
//
// Memberships and the user row go in one REPEATABLE READ transaction: a
// concurrent balance change, or a concurrent join committing between
// snapshot and delete, fails the commit and surfaces as
// ErrConcurrentModification rather than a half-deleted account.
func (s *Service) DeleteAccount(ctx context.Context, userID int64, currentSessionID string) error {
	tx, err := s.store.Begin(ctx, storage.TxOptions{Isolation: storage.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.groups.RemoveAllMemberships(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.AnonymizeUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, storage.ErrSerialization) || errors.Is(err, storage.ErrForeignKey) {
			return service.ErrConcurrentModification
		}
		return err
	}

	// Sessions go last: if the transaction above failed, the account is
	// untouched and the user stays logged in.
	if err := s.capacity.InvalidateAllExcept(ctx, userID, currentSessionID); err != nil {
		slog.Error("Failed to invalidate sessions on account deletion",
			"user_id", userID, "error", err)
	}

	slog.Info("Account deleted", "user_id", userID)
	return nil
}

// newDeviceID returns a fresh random device token (32 bytes, hex-encoded).
func newDeviceID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate device id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
