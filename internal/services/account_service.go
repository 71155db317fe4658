package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/craftfolio/craftfolio/internal/auth"
	"github.com/craftfolio/craftfolio/internal/models"
	"github.com/craftfolio/craftfolio/pkg/crypto"
	"github.com/craftfolio/craftfolio/pkg/logger"
	"github.com/craftfolio/craftfolio/pkg/mail"
	"github.com/craftfolio/craftfolio/pkg/metrics"
)

// AccountOption customises the AccountService.
type AccountOption func(*AccountService)

// WithBcryptCost overrides the password hashing work factor.
func WithBcryptCost(cost int) AccountOption {
	return func(s *AccountService) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// AccountService orchestrates the credential flows: OTP-gated registration,
// login, and OTP-gated password reset. It is the sole entry point used by
// the HTTP layer; the OTP ledger and credential store are only touched
// through it.
type AccountService struct {
	db         *gorm.DB
	otp        *OTPService
	jwt        *auth.JWTService
	mailer     mail.Mailer
	bcryptCost int
	log        *zap.Logger
}

// NewAccountService constructs an AccountService with the provided dependencies.
func NewAccountService(db *gorm.DB, otp *OTPService, jwt *auth.JWTService, mailer mail.Mailer, opts ...AccountOption) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if otp == nil {
		return nil, errors.New("account service: otp service is required")
	}
	if jwt == nil {
		return nil, errors.New("account service: jwt service is required")
	}

	service := &AccountService{
		db:         db,
		otp:        otp,
		jwt:        jwt,
		mailer:     mailer,
		bcryptCost: bcrypt.DefaultCost,
		log:        logger.WithModule("account"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// TokenTTL exposes the session token lifetime, used to align cookie expiry.
func (s *AccountService) TokenTTL() time.Duration {
	return s.jwt.TTL()
}

// BeginRegistration starts the registration flow: it rejects emails that
// already have an account, issues a registration passcode, and dispatches
// it by email. A dispatch failure surfaces as an error even though the
// code is already stored.
func (s *AccountService) BeginRegistration(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return errors.New("account service: email is required")
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("account service: lookup email: %w", err)
	}

	code, err := s.otp.Issue(ctx, email, models.PurposeRegistration)
	if err != nil {
		return err
	}

	return s.dispatchCode(ctx, email, code)
}

// CompleteRegistrationInput carries the second registration step.
type CompleteRegistrationInput struct {
	Name     string
	Email    string
	Code     string
	Password string
}

// CompleteRegistration verifies the registration passcode and, on success,
// creates the account with a hashed password and the verification flag
// already set: a consumed registration code is the ownership proof, so no
// unverified row is ever retained. A session token is issued immediately.
func (s *AccountService) CompleteRegistration(ctx context.Context, input CompleteRegistrationInput) (*models.User, string, error) {
	email := NormalizeEmail(input.Email)

	ok, err := s.otp.Verify(ctx, email, input.Code, models.PurposeRegistration)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		s.log.Info("registration code rejected", zap.String("email", email))
		return nil, "", ErrCodeRejected
	}

	hash, err := crypto.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("account service: hash password: %w", err)
	}

	user := models.User{
		Name:       input.Name,
		Email:      email,
		Password:   hash,
		IsVerified: true,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("account service: create user: %w", err)
	}

	// The registration code is consumed now; sweep it (and anything else
	// stale) so the ledger stays small. Best effort only.
	if _, err := s.otp.PurgeStale(ctx); err != nil {
		s.log.Warn("post-registration ledger sweep failed", zap.Error(err))
	}

	token, err := s.jwt.IssueToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("account service: issue token: %w", err)
	}

	s.log.Info("account created", zap.Uint("user_id", user.ID))
	return &user, token, nil
}

// Login verifies the password for a verified account and issues a session
// token. Unknown email, unverified account and wrong password all collapse
// into ErrInvalidLogin; the precise cause is logged here and nowhere else.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", ErrInvalidLogin
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.log.Info("login rejected: unknown email", zap.String("email", email))
		return nil, "", ErrInvalidLogin
	}
	if err != nil {
		return nil, "", fmt.Errorf("account service: lookup user: %w", err)
	}

	if !user.IsVerified {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.log.Info("login rejected: unverified account", zap.Uint("user_id", user.ID))
		return nil, "", ErrInvalidLogin
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.log.Info("login rejected: password mismatch", zap.Uint("user_id", user.ID))
		return nil, "", ErrInvalidLogin
	}

	token, err := s.jwt.IssueToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("account service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, token, nil
}

// BeginPasswordReset starts the reset flow for an existing account by
// issuing a reset passcode and dispatching it by email.
func (s *AccountService) BeginPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return errors.New("account service: email is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("account service: lookup user: %w", err)
	}

	code, err := s.otp.Issue(ctx, email, models.PurposePasswordReset)
	if err != nil {
		return err
	}

	return s.dispatchCode(ctx, email, code)
}

// CompletePasswordReset verifies the reset passcode and rotates the stored
// password hash. The verification flag and every other field stay untouched.
func (s *AccountService) CompletePasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)

	ok, err := s.otp.Verify(ctx, email, code, models.PurposePasswordReset)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("password reset code rejected", zap.String("email", email))
		return ErrCodeRejected
	}

	hash, err := crypto.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("account service: hash password: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Update("password", hash)
	if result.Error != nil {
		return fmt.Errorf("account service: rotate password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	s.log.Info("password rotated", zap.String("email", email))
	return nil
}

// Profile returns the account for the given id. Read-only; a missing row
// is reported as not found without escalating.
func (s *AccountService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account service: load profile: %w", err)
	}
	return &user, nil
}

func (s *AccountService) dispatchCode(ctx context.Context, email string, code *models.OneTimeCode) error {
	if s.mailer == nil {
		return nil
	}

	minutes := int(code.ExpiresAt.Sub(code.CreatedAt).Minutes())
	if minutes <= 0 {
		minutes = int(defaultCodeTTL.Minutes())
	}

	msg := mail.Message{
		To:      email,
		Subject: codeSubject(code.Purpose),
		Body:    codeBody(code.Purpose, code.Code, minutes),
	}

	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		// The code is stored and remains verifiable even though the user
		// never received it; the caller still sees the failure.
		return fmt.Errorf("account service: send code email: %w", err)
	}
	return nil
}

func codeSubject(purpose models.CodePurpose) string {
	if purpose == models.PurposePasswordReset {
		return "Reset Your Password - Craftfolio"
	}
	return "Verify Your Email - Craftfolio"
}

func codeBody(purpose models.CodePurpose, code string, minutes int) string {
	if purpose == models.PurposePasswordReset {
		return fmt.Sprintf(
			"You requested to reset your Craftfolio password.\n\nYour verification code is: %s\n\nThe code expires in %d minutes. If you did not request a password reset, you can ignore this message.\n",
			code, minutes,
		)
	}
	return fmt.Sprintf(
		"Welcome to Craftfolio!\n\nYour verification code is: %s\n\nThe code expires in %d minutes. If you did not sign up, you can ignore this message.\n",
		code, minutes,
	)
}
