package services

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopyard/auth-service/internal/domain"
	"github.com/shopyard/auth-service/internal/dto"
	"github.com/shopyard/auth-service/internal/helper"
	"github.com/shopyard/auth-service/internal/helper/utils"
)

// ---------- in-memory doubles ----------

type memAccountRepo struct {
	mu       sync.Mutex
	nextID   uint
	accounts map[uint]*domain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{nextID: 1, accounts: map[uint]*domain.Account{}}
}

func (m *memAccountRepo) Create(acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc.ID = m.nextID
	m.nextID++
	m.accounts[acc.ID] = acc
	return nil
}

func (m *memAccountRepo) Save(acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.accounts[acc.ID] = acc
	return nil
}

func (m *memAccountRepo) FindByID(id uint) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccountRepo) FindByEmail(email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccountRepo) FindByEmailOrPhone(email, phone string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Email == email || (acc.Phone != nil && *acc.Phone == phone) {
			return acc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccountRepo) FindByGoogleID(googleID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.GoogleID != nil && *acc.GoogleID == googleID {
			return acc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccountRepo) FindByResetToken(tokenHash string, now time.Time) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.ResetTokenHash == tokenHash &&
			acc.ResetTokenExpiresAt != nil && acc.ResetTokenExpiresAt.After(now) {
			return acc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type otpEntry struct {
	code      string
	expiresAt time.Time
}

type memOTPStore struct {
	mu      sync.Mutex
	counter int
	codes   map[string]otpEntry
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{codes: map[string]otpEntry{}}
}

func (m *memOTPStore) Issue(ctx context.Context, email string) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	code := fmt.Sprintf("%06d", m.counter)
	exp := time.Now().Add(5 * time.Minute)
	m.codes[email] = otpEntry{code: code, expiresAt: exp}
	return code, exp, nil
}

func (m *memOTPStore) VerifyAndConsume(ctx context.Context, email, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.codes[email]
	if !ok || entry.code != code {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.codes, email)
		return false, nil
	}
	delete(m.codes, email)
	return true, nil
}

func (m *memOTPStore) Delete(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

func (m *memOTPStore) liveCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email].code
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (s *stubMailer) Send(to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (s *stubMailer) last() sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentMail{}
	}
	return s.sent[len(s.sent)-1]
}

type stubUploader struct{}

func (stubUploader) UploadBytes(ctx context.Context, folder, filename string, b []byte) (string, error) {
	return fmt.Sprintf("https://cdn.example.com/%s/%s", folder, filename), nil
}

func (stubUploader) UploadURL(ctx context.Context, folder, filename, url string) (string, error) {
	return fmt.Sprintf("https://cdn.example.com/%s/%s", folder, filename), nil
}

type stubProducer struct {
	mu   sync.Mutex
	keys []string
}

func (s *stubProducer) PublishMessage(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, string(key))
	return nil
}

// ---------- harness ----------

type fixture struct {
	svc      AuthService
	repo     *memAccountRepo
	otp      *memOTPStore
	mailer   *stubMailer
	producer *stubProducer
	auth     helper.Auth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemAccountRepo()
	otp := newMemOTPStore()
	mail := &stubMailer{}
	producer := &stubProducer{}
	auth := helper.SetupAuth("access-secret", "refresh-secret", 24*time.Hour, 7*24*time.Hour)

	svc := NewAuthService(
		repo, otp, auth, mail, stubUploader{}, producer, nil,
		time.Hour, 5*time.Minute, "https://shop.example.com/reset-password",
	)
	return &fixture{svc: svc, repo: repo, otp: otp, mailer: mail, producer: producer, auth: auth}
}

func registerInput() dto.RegisterRequest {
	return dto.RegisterRequest{
		FirstName: "A",
		LastName:  "B",
		Email:     "a@x.com",
		Phone:     "+15550000001",
		Password:  "Password1",
	}
}

func fiberCode(t *testing.T, err error) int {
	t.Helper()
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	return fe.Code
}

// ---------- tests ----------

func TestRegisterReturnsMatchingClaims(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, "a@x.com", resp.User.Email)
	assert.Equal(t, domain.RoleCustomer, resp.User.Role)
	assert.Equal(t, domain.StatusActive, resp.User.Status)
	assert.False(t, resp.User.EmailVerified)
	assert.NotEmpty(t, resp.User.AvatarURL)

	claims, err := f.auth.VerifyAccessToken(resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.AccountID)
	assert.Equal(t, resp.User.Email, claims.Email)
	assert.Equal(t, resp.User.Role, claims.Role)

	// verification code went out by mail
	assert.Equal(t, "a@x.com", f.mailer.last().To)
	assert.Contains(t, f.mailer.last().HTML, f.otp.liveCode("a@x.com"))
	assert.Contains(t, f.producer.keys, "account.registered")
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	dup := registerInput()
	dup.Phone = "+15550000002"
	_, err = f.svc.Register(context.Background(), dup)
	assert.Equal(t, fiber.StatusConflict, fiberCode(t, err))
}

func TestRegisterDuplicatePhoneConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	dup := registerInput()
	dup.Email = "b@x.com"
	_, err = f.svc.Register(context.Background(), dup)
	assert.Equal(t, fiber.StatusConflict, fiberCode(t, err))
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	f := newFixture(t)

	in := registerInput()
	in.Role = "ADMIN"
	_, err := f.svc.Register(context.Background(), in)
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestLoginScenarios(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	resp, err := f.svc.Login("a@x.com", "Password1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", resp.User.Email)
	assert.NotNil(t, resp.User.LastLoginAt)

	_, err = f.svc.Login("a@x.com", "wrong")
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))

	// unknown email reads the same as a bad password
	_, err = f.svc.Login("nobody@x.com", "Password1")
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))
}

func TestLoginSuspendedIsForbiddenNotUnauthorized(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	acc, err := f.repo.FindByID(resp.User.ID)
	require.NoError(t, err)
	acc.Status = domain.StatusSuspended
	require.NoError(t, f.repo.Save(acc))

	_, err = f.svc.Login("a@x.com", "Password1")
	assert.Equal(t, fiber.StatusForbidden, fiberCode(t, err))
}

func TestLoginGoogleOnlyAccount(t *testing.T) {
	f := newFixture(t)
	googleID := "google-123"
	acc := &domain.Account{
		FirstName: "G", LastName: "User", Email: "g@x.com",
		GoogleID: &googleID, Role: domain.RoleCustomer,
		Status: domain.StatusActive, EmailVerified: true,
	}
	require.NoError(t, f.repo.Create(acc))

	_, err := f.svc.Login("g@x.com", "whatever")
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusUnauthorized, fe.Code)
	assert.Contains(t, fe.Message, "Google")
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	pair, err := f.svc.Refresh(resp.Tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := f.auth.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.AccountID)

	_, err = f.svc.Refresh("not-a-token")
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))

	// access token must not pass as a refresh token
	_, err = f.svc.Refresh(resp.Tokens.AccessToken)
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))

	acc, _ := f.repo.FindByID(resp.User.ID)
	acc.Status = domain.StatusSuspended
	require.NoError(t, f.repo.Save(acc))

	_, err = f.svc.Refresh(resp.Tokens.RefreshToken)
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ForgotPassword("nonexistent@x.com"))
	assert.Empty(t, f.mailer.sent)
}

var resetTokenRe = regexp.MustCompile(`token=([0-9a-f]+)`)

func TestResetPasswordFlow(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword("a@x.com"))
	match := resetTokenRe.FindStringSubmatch(f.mailer.last().HTML)
	require.Len(t, match, 2)
	rawToken := match[1]

	require.NoError(t, f.svc.ResetPassword(rawToken, "NewPassword1"))

	_, err = f.svc.Login("a@x.com", "NewPassword1")
	assert.NoError(t, err)
	_, err = f.svc.Login("a@x.com", "Password1")
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))

	// token is single use
	err = f.svc.ResetPassword(rawToken, "AnotherPass1")
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	rawToken, err := utils.RandomToken(32)
	require.NoError(t, err)

	acc, _ := f.repo.FindByID(resp.User.ID)
	past := time.Now().Add(-time.Minute)
	acc.ResetTokenHash = utils.Sha256Hex(rawToken)
	acc.ResetTokenExpiresAt = &past
	require.NoError(t, f.repo.Save(acc))

	err = f.svc.ResetPassword(rawToken, "NewPassword1")
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	err = f.svc.ChangePassword(resp.User.ID, "wrong", "NewPassword1")
	assert.Equal(t, fiber.StatusUnauthorized, fiberCode(t, err))

	require.NoError(t, f.svc.ChangePassword(resp.User.ID, "Password1", "NewPassword1"))
	_, err = f.svc.Login("a@x.com", "NewPassword1")
	assert.NoError(t, err)
}

func TestChangePasswordGoogleOnlyAccount(t *testing.T) {
	f := newFixture(t)
	googleID := "google-456"
	acc := &domain.Account{
		FirstName: "G", LastName: "User", Email: "g2@x.com",
		GoogleID: &googleID, Role: domain.RoleCustomer, Status: domain.StatusActive,
	}
	require.NoError(t, f.repo.Create(acc))

	err := f.svc.ChangePassword(acc.ID, "", "NewPassword1")
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestVerifyEmailConsumesCode(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	code := f.otp.liveCode("a@x.com")
	require.NotEmpty(t, code)

	require.NoError(t, f.svc.VerifyEmail(context.Background(), "a@x.com", code))

	acc, _ := f.repo.FindByID(resp.User.ID)
	assert.True(t, acc.EmailVerified)

	// consumed: the same code no longer verifies
	err = f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestVerifyEmailWrongCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	err = f.svc.VerifyEmail(context.Background(), "a@x.com", "000000")
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestNewCodeSupersedesOld(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	oldCode := f.otp.liveCode("a@x.com")

	msg, err := f.svc.ResendVerification(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	newCode := f.otp.liveCode("a@x.com")
	require.NotEqual(t, oldCode, newCode)

	err = f.svc.VerifyEmail(context.Background(), "a@x.com", oldCode)
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))

	assert.NoError(t, f.svc.VerifyEmail(context.Background(), "a@x.com", newCode))
}

func TestResendVerificationMessages(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	// unknown email gets the generic body
	msg, err := f.svc.ResendVerification(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Equal(t, genericVerifyMsg, msg)

	acc, _ := f.repo.FindByID(resp.User.ID)
	acc.EmailVerified = true
	require.NoError(t, f.repo.Save(acc))

	// already-verified path deliberately says so
	msg, err = f.svc.ResendVerification(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "email is already verified", msg)
}

func TestSetStatusSoftDelete(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.SetStatus(resp.User.ID, domain.StatusSuspended))
	require.NoError(t, f.svc.SetStatus(resp.User.ID, domain.StatusDeleted))

	acc, _ := f.repo.FindByID(resp.User.ID)
	assert.Equal(t, domain.StatusDeleted, acc.Status)
	assert.Contains(t, acc.Email, "deleted:")
	require.NotNil(t, acc.Phone)
	assert.Contains(t, *acc.Phone, "deleted:")

	// the email slot is free again
	_, err = f.svc.Register(context.Background(), registerInput())
	assert.NoError(t, err)

	// deletion is terminal
	err = f.svc.SetStatus(resp.User.ID, domain.StatusActive)
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	fn := "Updated"
	out, err := f.svc.UpdateProfile(resp.User.ID, dto.UpdateProfileRequest{FirstName: &fn})
	require.NoError(t, err)
	assert.Equal(t, "Updated", out.FirstName)
	assert.Equal(t, "B", out.LastName)

	empty := ""
	_, err = f.svc.UpdateProfile(resp.User.ID, dto.UpdateProfileRequest{LastName: &empty})
	assert.Equal(t, fiber.StatusBadRequest, fiberCode(t, err))
}
