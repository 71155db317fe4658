package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/craftfolio/craftfolio/internal/auth"
	"github.com/craftfolio/craftfolio/internal/models"
	"github.com/craftfolio/craftfolio/pkg/mail"
)

type recordingMailer struct {
	messages []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, mail.Message) error {
	return errors.New("smtp: connection refused")
}

func newAccountFixture(t *testing.T, db *gorm.DB, mailer mail.Mailer) *AccountService {
	t.Helper()

	otp, err := NewOTPService(db)
	require.NoError(t, err)

	jwt, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "account-test-secret",
		Issuer: "craftfolio",
		TTL:    time.Hour,
	})
	require.NoError(t, err)

	svc, err := NewAccountService(db, otp, jwt, mailer, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return svc
}

func storedCode(t *testing.T, db *gorm.DB, email string, purpose models.CodePurpose) string {
	t.Helper()

	var row models.OneTimeCode
	require.NoError(t, db.
		Where("email = ? AND purpose = ? AND consumed = ?", email, purpose, false).
		Order("id DESC").
		Take(&row).Error)
	return row.Code
}

func TestRegistrationRejectsWrongCode(t *testing.T) {
	db := openServiceTestDB(t)
	mailer := &recordingMailer{}
	svc := newAccountFixture(t, db, mailer)
	ctx := context.Background()

	require.NoError(t, svc.BeginRegistration(ctx, "a.b@x.com"))

	code := storedCode(t, db, "a.b@x.com", models.PurposeRegistration)
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}

	_, _, err := svc.CompleteRegistration(ctx, CompleteRegistrationInput{
		Name:     "A",
		Email:    "a.b@x.com",
		Code:     wrong,
		Password: "secret123",
	})
	require.ErrorIs(t, err, ErrCodeRejected)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count, "no identity may exist after a failed verification")
}

func TestRegistrationEndToEnd(t *testing.T) {
	db := openServiceTestDB(t)
	mailer := &recordingMailer{}
	svc := newAccountFixture(t, db, mailer)
	ctx := context.Background()

	require.NoError(t, svc.BeginRegistration(ctx, "a.b@x.com"))
	require.Len(t, mailer.messages, 1)

	code := storedCode(t, db, "a.b@x.com", models.PurposeRegistration)
	require.Contains(t, mailer.messages[0].Body, code, "the dispatched email must carry the code")

	user, token, err := svc.CompleteRegistration(ctx, CompleteRegistrationInput{
		Name:     "A",
		Email:    "a.b@x.com",
		Code:     code,
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.True(t, user.IsVerified)
	require.NotEqual(t, "secret123", user.Password)
	require.NotEmpty(t, token)

	// The consumed registration code is swept away.
	var ledger int64
	require.NoError(t, db.Model(&models.OneTimeCode{}).Count(&ledger).Error)
	require.Zero(t, ledger)
}

func TestBeginRegistrationRejectsExistingEmail(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, &recordingMailer{})
	ctx := context.Background()

	require.NoError(t, db.Create(&models.User{
		Name: "Existing", Email: "taken@x.com", Password: "hash", IsVerified: true,
	}).Error)

	err := svc.BeginRegistration(ctx, "Taken@X.com")
	require.ErrorIs(t, err, ErrEmailTaken)

	var ledger int64
	require.NoError(t, db.Model(&models.OneTimeCode{}).Count(&ledger).Error)
	require.Zero(t, ledger, "no code may be issued for a terminal failure")
}

func TestBeginRegistrationSurfacesDispatchFailure(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, failingMailer{})
	ctx := context.Background()

	err := svc.BeginRegistration(ctx, "undelivered@x.com")
	require.Error(t, err)

	// The stored code survives the failed dispatch.
	var ledger int64
	require.NoError(t, db.Model(&models.OneTimeCode{}).Count(&ledger).Error)
	require.EqualValues(t, 1, ledger)
}

func TestLoginRejectsUnverifiedAccount(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, &recordingMailer{})
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.User{
		Name: "Pending", Email: "pending@x.com", Password: string(hash), IsVerified: false,
	}).Error)

	_, _, err = svc.Login(ctx, "pending@x.com", "secret123")
	require.ErrorIs(t, err, ErrInvalidLogin)
}

func TestLoginRejectsUnknownEmailAndWrongPassword(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, &recordingMailer{})
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "nobody@x.com", "whatever1")
	require.ErrorIs(t, err, ErrInvalidLogin)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Name: "B", Email: "b@x.com", Password: string(hash), IsVerified: true,
	}).Error)

	_, _, err = svc.Login(ctx, "b@x.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidLogin)
}

func TestPasswordResetEndToEnd(t *testing.T) {
	db := openServiceTestDB(t)
	mailer := &recordingMailer{}
	svc := newAccountFixture(t, db, mailer)
	ctx := context.Background()

	require.NoError(t, svc.BeginRegistration(ctx, "reset@x.com"))
	code := storedCode(t, db, "reset@x.com", models.PurposeRegistration)
	_, _, err := svc.CompleteRegistration(ctx, CompleteRegistrationInput{
		Name: "R", Email: "reset@x.com", Code: code, Password: "oldpass123",
	})
	require.NoError(t, err)

	require.NoError(t, svc.BeginPasswordReset(ctx, "reset@x.com"))
	resetCode := storedCode(t, db, "reset@x.com", models.PurposePasswordReset)
	require.NoError(t, svc.CompletePasswordReset(ctx, "reset@x.com", resetCode, "newpass456"))

	_, _, err = svc.Login(ctx, "reset@x.com", "oldpass123")
	require.ErrorIs(t, err, ErrInvalidLogin, "the old password must stop working")

	user, token, err := svc.Login(ctx, "reset@x.com", "newpass456")
	require.NoError(t, err)
	require.True(t, user.IsVerified, "reset must not touch the verification flag")
	require.NotEmpty(t, token)
}

func TestBeginPasswordResetRequiresAccount(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, &recordingMailer{})

	err := svc.BeginPasswordReset(context.Background(), "ghost@x.com")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResetCodeCannotBeReplayed(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, &recordingMailer{})
	ctx := context.Background()

	require.NoError(t, svc.BeginRegistration(ctx, "replay@x.com"))
	code := storedCode(t, db, "replay@x.com", models.PurposeRegistration)
	_, _, err := svc.CompleteRegistration(ctx, CompleteRegistrationInput{
		Name: "R", Email: "replay@x.com", Code: code, Password: "first-pass1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.BeginPasswordReset(ctx, "replay@x.com"))
	resetCode := storedCode(t, db, "replay@x.com", models.PurposePasswordReset)
	require.NoError(t, svc.CompletePasswordReset(ctx, "replay@x.com", resetCode, "second-pass2"))

	err = svc.CompletePasswordReset(ctx, "replay@x.com", resetCode, "third-pass3")
	require.ErrorIs(t, err, ErrCodeRejected)
}

func TestProfile(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountFixture(t, db, &recordingMailer{})
	ctx := context.Background()

	require.NoError(t, db.Create(&models.User{
		Name: "P", Email: "profile@x.com", Password: "hash", IsVerified: true,
	}).Error)

	var created models.User
	require.NoError(t, db.Where("email = ?", "profile@x.com").Take(&created).Error)

	user, err := svc.Profile(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "profile@x.com", user.Email)

	_, err = svc.Profile(ctx, created.ID+1000)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDispatchedSubjectsPerPurpose(t *testing.T) {
	db := openServiceTestDB(t)
	mailer := &recordingMailer{}
	svc := newAccountFixture(t, db, mailer)
	ctx := context.Background()

	require.NoError(t, svc.BeginRegistration(ctx, "subjects@x.com"))

	code := storedCode(t, db, "subjects@x.com", models.PurposeRegistration)
	_, _, err := svc.CompleteRegistration(ctx, CompleteRegistrationInput{
		Name: "S", Email: "subjects@x.com", Code: code, Password: "secret123",
	})
	require.NoError(t, err)

	require.NoError(t, svc.BeginPasswordReset(ctx, "subjects@x.com"))

	require.Len(t, mailer.messages, 2)
	require.True(t, strings.Contains(mailer.messages[0].Subject, "Verify"))
	require.True(t, strings.Contains(mailer.messages[1].Subject, "Reset"))
}
