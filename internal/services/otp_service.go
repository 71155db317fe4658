package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/craftfolio/craftfolio/internal/models"
	"github.com/craftfolio/craftfolio/pkg/crypto"
	"github.com/craftfolio/craftfolio/pkg/logger"
	"github.com/craftfolio/craftfolio/pkg/metrics"
)

const (
	defaultCodeTTL = 10 * time.Minute
	codeDigits     = 6
)

// OTPOption customises the OTPService.
type OTPOption func(*OTPService)

// WithCodeTTL overrides the passcode lifetime.
func WithCodeTTL(d time.Duration) OTPOption {
	return func(s *OTPService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithOTPClock injects a custom time source.
func WithOTPClock(clock func() time.Time) OTPOption {
	return func(s *OTPService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// OTPService issues and verifies one-time passcodes against the durable
// ledger. All single-use and single-active-code guarantees are enforced by
// the store, never by process memory, so multiple server instances stay
// consistent.
type OTPService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
	log *zap.Logger
}

// NewOTPService constructs an OTPService with the provided dependencies.
func NewOTPService(db *gorm.DB, opts ...OTPOption) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}

	service := &OTPService{
		db:  db,
		ttl: defaultCodeTTL,
		now: time.Now,
		log: logger.WithModule("otp"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Issue generates a fresh passcode for (email, purpose) and persists it.
// Any previously unconsumed codes for the pair are deleted in the same
// transaction, so at most one live code exists per pair afterwards; when
// two issuance calls race, the later write wins and the earlier code
// becomes unusable.
func (s *OTPService) Issue(ctx context.Context, email string, purpose models.CodePurpose) (*models.OneTimeCode, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("otp service: email is required")
	}
	if purpose != models.PurposeRegistration && purpose != models.PurposePasswordReset {
		return nil, fmt.Errorf("otp service: unknown purpose %q", purpose)
	}

	code, err := crypto.GenerateNumericCode(codeDigits)
	if err != nil {
		return nil, fmt.Errorf("otp service: generate code: %w", err)
	}

	record := models.OneTimeCode{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("email = ? AND purpose = ? AND consumed = ?", email, purpose, false).
			Delete(&models.OneTimeCode{}).Error; err != nil {
			return fmt.Errorf("supersede previous codes: %w", err)
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("otp service: store code: %w", err)
	}

	metrics.CodesIssued.WithLabelValues(string(purpose)).Inc()
	s.log.Debug("passcode issued",
		zap.String("email", email),
		zap.String("purpose", string(purpose)),
		zap.Time("expires_at", record.ExpiresAt),
	)

	return &record, nil
}

// Verify matches the presented code against the ledger and consumes it.
// Unknown, expired and already-consumed codes all yield (false, nil);
// callers cannot distinguish the cause. The consume step re-checks the
// consumed flag and inspects the affected row count, so of two concurrent
// verifiers exactly one observes success.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose models.CodePurpose) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || code == "" {
		return false, nil
	}

	now := s.now()

	var match models.OneTimeCode
	err := s.db.WithContext(ctx).
		Where("email = ? AND code = ? AND purpose = ? AND consumed = ? AND expires_at > ?",
			email, code, purpose, false, now).
		Order("id DESC").
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.CodeVerifications.WithLabelValues(string(purpose), "failure").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("otp service: find code: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.OneTimeCode{}).
		Where("id = ? AND consumed = ?", match.ID, false).
		Update("consumed", true)
	if result.Error != nil {
		return false, fmt.Errorf("otp service: consume code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// A concurrent verifier consumed the row first.
		metrics.CodeVerifications.WithLabelValues(string(purpose), "failure").Inc()
		return false, nil
	}

	metrics.CodeVerifications.WithLabelValues(string(purpose), "success").Inc()
	return true, nil
}

// PurgeStale deletes every ledger row that is expired or consumed. It is
// idempotent and safe to run while issuance and verification proceed,
// since it only removes rows that are already unusable.
func (s *OTPService) PurgeStale(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR consumed = ?", s.now(), true).
		Delete(&models.OneTimeCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("otp service: purge stale codes: %w", result.Error)
	}

	metrics.CodesPurged.Add(float64(result.RowsAffected))
	return result.RowsAffected, nil
}
