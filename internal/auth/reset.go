package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

// ResetTokenTTL is the absolute lifetime of a password reset token.
const ResetTokenTTL = 10 * time.Minute

const resetSaltBytes = 32

var resetTokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidResetTokenFormat reports whether token has the fixed reset token shape
// (64 lowercase hex characters).
func ValidResetTokenFormat(token string) bool {
	return len(token) == sha256.Size*2 && resetTokenPattern.MatchString(token)
}

// RequestPasswordReset stores a fresh reset token for email and hands it to
// the notifier. Delivery failures are reported to the caller.
func (m *SessionManager) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return BadRequest("email is required")
	}
	acc, err := m.store.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFound("account not found")
		}
		return Internal("lookup account", err)
	}
	token, err := m.newResetToken(acc.ID)
	if err != nil {
		return Internal("generate reset token", err)
	}
	expiresAt := m.now().UTC().Add(ResetTokenTTL)
	if err := m.store.Update(ctx, acc.ID, AccountUpdate{
		ResetToken:          ptr(token),
		ResetTokenExpiresAt: ptr(expiresAt),
	}); err != nil {
		return Internal("store reset token", err)
	}
	if m.notifier == nil {
		return Internal("send reset email", errors.New("no notifier configured"))
	}
	payload := map[string]string{
		"name":      acc.Name,
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
	}
	if err := m.notifier.Send(ctx, acc.Email, NotifyPasswordReset, payload); err != nil {
		return Internal("send reset email", err)
	}
	return nil
}

// VerifyResetToken checks that token is well formed and currently redeemable
// without consuming it.
func (m *SessionManager) VerifyResetToken(ctx context.Context, token string) error {
	_, err := m.lookupResetToken(ctx, token)
	return err
}

// ConsumePasswordReset sets a new password for the holder of token and clears
// both reset fields in the same update, so a token redeems at most once.
func (m *SessionManager) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	if !ValidResetTokenFormat(token) {
		return BadRequest(MsgInvalidResetToken)
	}
	if newPassword == "" {
		return BadRequest("new password is required")
	}
	acc, err := m.lookupResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return Internal("hash password", err)
	}
	if err := m.store.Update(ctx, acc.ID, AccountUpdate{
		PasswordHash:        ptr(hash),
		ResetToken:          ptr(""),
		ResetTokenExpiresAt: ptr(time.Time{}),
	}); err != nil {
		return Internal("update password", err)
	}
	return nil
}

func (m *SessionManager) lookupResetToken(ctx context.Context, token string) (*Account, error) {
	if !ValidResetTokenFormat(token) {
		return nil, BadRequest(MsgInvalidResetToken)
	}
	now := m.now().UTC()
	acc, err := m.store.FindByResetToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, BadRequest(MsgInvalidResetToken)
		}
		return nil, Internal("lookup reset token", err)
	}
	if acc.ResetToken != token || !acc.ResetTokenExpiresAt.After(now) {
		return nil, BadRequest(MsgInvalidResetToken)
	}
	return acc, nil
}

// newResetToken hashes the account id with a random salt; the result cannot
// be reversed to either input.
func (m *SessionManager) newResetToken(accountID string) (string, error) {
	salt := make([]byte, resetSaltBytes)
	if _, err := io.ReadFull(m.random, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}
