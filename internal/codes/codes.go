// Package codes manages tracking codes: creation, lookup, target updates,
// and the token-based access guard protecting every management operation.
package codes

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ErrInvalidTargetURL is returned when a target URL is not a valid absolute URL.
var ErrInvalidTargetURL = errors.New("target URL must be a valid absolute URL")

// CodeNotFoundError represents an error when a tracking code is not found.
// Authorize returns the same error for an unknown id and a token mismatch,
// so callers cannot distinguish the two cases.
type CodeNotFoundError struct {
	ID string
}

func (e *CodeNotFoundError) Error() string {
	return fmt.Sprintf("tracking code not found: %s", e.ID)
}

// NewCodeNotFoundError creates a new CodeNotFoundError
func NewCodeNotFoundError(id string) *CodeNotFoundError {
	return &CodeNotFoundError{ID: id}
}

// TrackingCode represents one generated redirect link with its target URL
// and secret management token.
type TrackingCode struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	DisplayName string    `json:"display_name"`
	TargetURL   string    `gorm:"not null" json:"target_url"`
	ManageToken string    `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidateTargetURL checks that raw parses as an absolute URL with a scheme
// and host. Returns ErrInvalidTargetURL otherwise.
func ValidateTargetURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTargetURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidTargetURL
	}
	return nil
}

// generateManageToken returns a 64-character hex token from 32 random bytes.
func generateManageToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate manage token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateCode validates the target URL, generates a fresh id and manage token,
// and persists a new TrackingCode.
func CreateCode(db *gorm.DB, logger *slog.Logger, displayName, targetURL string) (*TrackingCode, error) {
	if err := ValidateTargetURL(targetURL); err != nil {
		return nil, err
	}

	token, err := generateManageToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	code := &TrackingCode{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		TargetURL:   targetURL,
		ManageToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(code).Error
	})
	if err != nil {
		logger.Error("Failed to create tracking code", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create tracking code: %w", err)
	}

	return code, nil
}

// GetCodeOrNotFound retrieves a TrackingCode by id.
// It accepts a transaction to be used as part of a larger transaction process.
func GetCodeOrNotFound(tx *gorm.DB, id string) (*TrackingCode, error) {
	var code TrackingCode
	if err := tx.Where("id = ?", id).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewCodeNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying tracking code: %w", err)
	}
	return &code, nil
}

// Authorize looks up a code and verifies the supplied management token.
// Possession of the token is the sole authorization credential. An unknown
// id, an empty token, and a mismatched token all yield an identical
// CodeNotFoundError.
func Authorize(db *gorm.DB, id, suppliedToken string) (*TrackingCode, error) {
	code, err := GetCodeOrNotFound(db, id)
	if err != nil {
		return nil, err
	}

	if suppliedToken == "" ||
		subtle.ConstantTimeCompare([]byte(code.ManageToken), []byte(suppliedToken)) != 1 {
		return nil, NewCodeNotFoundError(id)
	}

	return code, nil
}

// UpdateTargetURL validates and stores a new redirect destination, bumping
// UpdatedAt. The stored record is untouched when validation fails.
func UpdateTargetURL(db *gorm.DB, logger *slog.Logger, code *TrackingCode, newTargetURL string) error {
	if err := ValidateTargetURL(newTargetURL); err != nil {
		return err
	}

	code.TargetURL = newTargetURL
	code.UpdatedAt = time.Now().UTC()

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&TrackingCode{}).Where("id = ?", code.ID).Updates(map[string]interface{}{
			"target_url": code.TargetURL,
			"updated_at": code.UpdatedAt,
		}).Error
	})
	if err != nil {
		logger.Error("Failed to update target URL", slog.String("id", code.ID), slog.Any("error", err))
		return fmt.Errorf("failed to update target URL: %w", err)
	}

	return nil
}

// CountCodes returns the number of tracking codes in the store.
func CountCodes(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&TrackingCode{}).Count(&count).Error
	return count, err
}

// PublicURL returns the scan URL distributed with the code.
func PublicURL(baseURL, id string) string {
	return fmt.Sprintf("%s/s/%s", baseURL, id)
}

// ManageURL returns the management URL carrying the secret token.
func ManageURL(baseURL, id, manageToken string) string {
	return fmt.Sprintf("%s/s/%s/manage?token=%s", baseURL, id, manageToken)
}
