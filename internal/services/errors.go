package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Sentinel errors returned by the account service. Handlers collapse them
// into the uniform user-facing messages; the precise cause stays in logs.
var (
	// ErrEmailTaken indicates a registration attempt for an email that
	// already has an account.
	ErrEmailTaken = errors.New("account: email already registered")
	// ErrAccountNotFound indicates no account exists for the email or id.
	ErrAccountNotFound = errors.New("account: not found")
	// ErrInvalidLogin covers every login rejection: unknown email,
	// unverified account, or wrong password.
	ErrInvalidLogin = errors.New("account: invalid login")
	// ErrCodeRejected covers every passcode rejection: unknown, expired,
	// or already consumed.
	ErrCodeRejected = errors.New("account: code rejected")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
