package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shopyard/auth-service/internal/clients/google"
	"github.com/shopyard/auth-service/internal/domain"
	"github.com/shopyard/auth-service/internal/dto"
	"github.com/shopyard/auth-service/internal/helper"
	"github.com/shopyard/auth-service/internal/helper/utils"
	"github.com/shopyard/auth-service/internal/interfaces"
	"github.com/shopyard/auth-service/internal/repository"
	"github.com/shopyard/auth-service/pkg/avatar"
	"github.com/shopyard/auth-service/pkg/mailer"
)

type AuthService interface {
	// Auth
	Register(ctx context.Context, input dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(email, password string) (*dto.AuthResponse, error)
	Refresh(refreshToken string) (*dto.TokenPair, error)
	ForgotPassword(email string) error
	ResetPassword(rawToken, newPassword string) error
	ChangePassword(accountID uint, currentPassword, newPassword string) error
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) (string, error)

	// Google sign-in
	GoogleAuthURL(state string) string
	GoogleCallback(ctx context.Context, code string) (*dto.TokenPair, error)

	// Profile
	Me(accountID uint) (*dto.AccountResponse, error)
	UpdateProfile(accountID uint, input dto.UpdateProfileRequest) (*dto.AccountResponse, error)

	// Admin
	SetStatus(accountID uint, status string) error
}

type authService struct {
	repo     repository.AccountRepository
	otp      repository.OTPStore
	auth     helper.Auth
	mailer   interfaces.Mailer
	uploader interfaces.Uploader
	producer interfaces.ProducerHandler
	google   *google.Client

	resetTokenTTL time.Duration
	otpTTL        time.Duration
	resetBaseURL  string
}

func NewAuthService(
	repo repository.AccountRepository,
	otp repository.OTPStore,
	auth helper.Auth,
	mail interfaces.Mailer,
	uploader interfaces.Uploader,
	producer interfaces.ProducerHandler,
	googleClient *google.Client,
	resetTokenTTL time.Duration,
	otpTTL time.Duration,
	resetBaseURL string,
) AuthService {
	if resetTokenTTL <= 0 {
		resetTokenTTL = time.Hour
	}
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &authService{
		repo:          repo,
		otp:           otp,
		auth:          auth,
		mailer:        mail,
		uploader:      uploader,
		producer:      producer,
		google:        googleClient,
		resetTokenTTL: resetTokenTTL,
		otpTTL:        otpTTL,
		resetBaseURL:  resetBaseURL,
	}
}

const genericResetMsg = "if the email exists, a password reset link has been sent"
const genericVerifyMsg = "if the email exists, a verification code has been sent"

// AUTH

func (s *authService) Register(ctx context.Context, input dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	phone := strings.TrimSpace(input.Phone)
	password := strings.TrimSpace(input.Password)
	role := strings.TrimSpace(strings.ToUpper(input.Role))

	if email == "" || password == "" || firstName == "" || lastName == "" || phone == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid inputs")
	}
	if len(password) < 6 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}
	if role == "" {
		role = domain.RoleCustomer
	}
	// admin accounts are never self-assigned
	if role != domain.RoleSeller && role != domain.RoleCustomer {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid role")
	}

	// one probe against both unique identifiers
	existing, err := s.repo.FindByEmailOrPhone(email, phone)
	if err == nil && existing != nil && existing.ID != 0 {
		return nil, fiber.NewError(fiber.StatusConflict, "email or phone already in use")
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashed, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	acc := &domain.Account{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Phone:        &phone,
		PasswordHash: hashed,
		Role:         role,
		Status:       domain.StatusActive,
	}

	if err := s.repo.Create(acc); err != nil {
		if helper.IsDuplicateKey(err) {
			return nil, fiber.NewError(fiber.StatusConflict, "email or phone already in use")
		}
		return nil, err
	}

	// avatar generation is best-effort; registration already succeeded
	if s.uploader != nil {
		avatarURL, upErr := s.uploader.UploadURL(
			ctx, "avatars", fmt.Sprintf("account_%d", acc.ID), avatar.URL(firstName, lastName),
		)
		if upErr != nil {
			log.Printf("avatar upload error for account %d: %v", acc.ID, upErr)
		} else {
			acc.AvatarURL = avatarURL
			if saveErr := s.repo.Save(acc); saveErr != nil {
				log.Printf("avatar save error for account %d: %v", acc.ID, saveErr)
			}
		}
	}

	s.sendVerificationCode(ctx, acc)
	publishEvent(s.producer, eventRegistered, acc.ID, acc.Email)

	tokens, err := s.auth.GenerateTokenPair(claimsFor(acc))
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{User: toAccountResponse(acc), Tokens: tokens}, nil
}

func (s *authService) Login(email, password string) (*dto.AuthResponse, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}

	acc, err := s.repo.FindByEmail(email)
	if err != nil || acc == nil || acc.ID == 0 {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}

	if !acc.HasPassword() {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "this account uses Google sign-in, please log in with Google")
	}

	if err := s.auth.VerifyPassword(password, acc.PasswordHash); err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}

	if acc.Status != domain.StatusActive {
		return nil, fiber.NewError(fiber.StatusForbidden, "account is not active")
	}

	now := time.Now()
	acc.LastLoginAt = &now
	if err := s.repo.Save(acc); err != nil {
		log.Printf("last login save error for account %d: %v", acc.ID, err)
	}

	tokens, err := s.auth.GenerateTokenPair(claimsFor(acc))
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{User: toAccountResponse(acc), Tokens: tokens}, nil
}

// Refresh mints a fresh pair off a valid refresh token. The presented
// refresh token is not rotated; it stays valid until its own expiry.
func (s *authService) Refresh(refreshToken string) (*dto.TokenPair, error) {
	claims, err := s.auth.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}

	acc, err := s.repo.FindByID(claims.AccountID)
	if err != nil || acc == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}
	if acc.Status != domain.StatusActive {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "account is not active")
	}

	tokens, err := s.auth.GenerateTokenPair(claimsFor(acc))
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// ForgotPassword never reveals whether the email exists.
func (s *authService) ForgotPassword(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	acc, err := s.repo.FindByEmail(email)
	if err != nil || acc == nil {
		return nil
	}

	plain, err := utils.RandomToken(32)
	if err != nil {
		return errors.New("failed to generate reset token")
	}

	exp := time.Now().Add(s.resetTokenTTL)
	acc.ResetTokenHash = utils.Sha256Hex(plain)
	acc.ResetTokenExpiresAt = &exp
	if err := s.repo.Save(acc); err != nil {
		return err
	}

	link := fmt.Sprintf("%s?token=%s", s.resetBaseURL, url.QueryEscape(plain))
	if html, rdErr := mailer.RenderResetLink(acc.FirstName, link); rdErr == nil {
		s.sendMail(acc.Email, "Reset your password", html)
	}
	return nil
}

func (s *authService) ResetPassword(rawToken, newPassword string) error {
	rawToken = strings.TrimSpace(rawToken)
	newPassword = strings.TrimSpace(newPassword)

	if rawToken == "" || newPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid inputs")
	}
	if len(newPassword) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	// wrong token and expired token are deliberately indistinguishable
	acc, err := s.repo.FindByResetToken(utils.Sha256Hex(rawToken), time.Now())
	if err != nil || acc == nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired token")
	}

	hashed, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	acc.PasswordHash = hashed
	acc.ResetTokenHash = ""
	acc.ResetTokenExpiresAt = nil
	if err := s.repo.Save(acc); err != nil {
		return err
	}

	if html, rdErr := mailer.RenderPasswordChanged(acc.FirstName); rdErr == nil {
		s.sendMail(acc.Email, "Your password was changed", html)
	}
	publishEvent(s.producer, eventPasswordChanged, acc.ID, acc.Email)
	return nil
}

func (s *authService) ChangePassword(accountID uint, currentPassword, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if len(newPassword) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	acc, err := s.repo.FindByID(accountID)
	if err != nil || acc == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if !acc.HasPassword() {
		return fiber.NewError(fiber.StatusBadRequest, "account has no local password, use Google sign-in")
	}

	if err := s.auth.VerifyPassword(currentPassword, acc.PasswordHash); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "current password is incorrect")
	}

	hashed, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	acc.PasswordHash = hashed
	if err := s.repo.Save(acc); err != nil {
		return err
	}

	if html, rdErr := mailer.RenderPasswordChanged(acc.FirstName); rdErr == nil {
		s.sendMail(acc.Email, "Your password was changed", html)
	}
	publishEvent(s.producer, eventPasswordChanged, acc.ID, acc.Email)
	return nil
}

func (s *authService) VerifyEmail(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)

	acc, err := s.repo.FindByEmail(email)
	if err != nil || acc == nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired code")
	}

	ok, err := s.otp.VerifyAndConsume(ctx, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired code")
	}

	acc.EmailVerified = true
	if err := s.repo.Save(acc); err != nil {
		return err
	}
	publishEvent(s.producer, eventEmailVerified, acc.ID, acc.Email)
	return nil
}

func (s *authService) ResendVerification(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	acc, err := s.repo.FindByEmail(email)
	if err != nil || acc == nil {
		return genericVerifyMsg, nil
	}
	if acc.EmailVerified {
		return "email is already verified", nil
	}

	s.sendVerificationCode(ctx, acc)
	return genericVerifyMsg, nil
}

// GOOGLE SIGN-IN

func (s *authService) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state)
}

func (s *authService) GoogleCallback(ctx context.Context, code string) (*dto.TokenPair, error) {
	tok, err := s.google.Exchange(ctx, code)
	if err != nil {
		log.Printf("google exchange error: %v", err)
		return nil, fiber.NewError(fiber.StatusBadGateway, "google sign-in failed")
	}

	profile, err := s.google.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		log.Printf("google userinfo error: %v", err)
		return nil, fiber.NewError(fiber.StatusBadGateway, "google sign-in failed")
	}

	email := strings.ToLower(profile.Email)
	acc, err := s.repo.FindByEmail(email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	if acc == nil || acc.ID == 0 {
		firstName := profile.GivenName
		lastName := profile.FamilyName
		if firstName == "" {
			firstName = profile.Name
		}
		acc = &domain.Account{
			FirstName:     firstName,
			LastName:      lastName,
			Email:         email,
			GoogleID:      &profile.ID,
			AvatarURL:     profile.Picture,
			Role:          domain.RoleCustomer,
			Status:        domain.StatusActive,
			EmailVerified: true,
			LastLoginAt:   &now,
		}
		if err := s.repo.Create(acc); err != nil {
			if helper.IsDuplicateKey(err) {
				return nil, fiber.NewError(fiber.StatusConflict, "account already exists")
			}
			return nil, err
		}
		publishEvent(s.producer, eventRegistered, acc.ID, acc.Email)
	} else {
		if acc.Status != domain.StatusActive {
			return nil, fiber.NewError(fiber.StatusForbidden, "account is not active")
		}
		if acc.GoogleID == nil {
			acc.GoogleID = &profile.ID
		}
		acc.LastLoginAt = &now
		if err := s.repo.Save(acc); err != nil {
			log.Printf("google login save error for account %d: %v", acc.ID, err)
		}
	}

	tokens, err := s.auth.GenerateTokenPair(claimsFor(acc))
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// PROFILE

func (s *authService) Me(accountID uint) (*dto.AccountResponse, error) {
	acc, err := s.repo.FindByID(accountID)
	if err != nil || acc == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "account not found")
	}
	resp := toAccountResponse(acc)
	return &resp, nil
}

func (s *authService) UpdateProfile(accountID uint, input dto.UpdateProfileRequest) (*dto.AccountResponse, error) {
	acc, err := s.repo.FindByID(accountID)
	if err != nil || acc == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "account not found")
	}

	if input.FirstName != nil {
		fn := strings.TrimSpace(*input.FirstName)
		if fn == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "first_name cannot be empty")
		}
		acc.FirstName = fn
	}
	if input.LastName != nil {
		ln := strings.TrimSpace(*input.LastName)
		if ln == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "last_name cannot be empty")
		}
		acc.LastName = ln
	}
	if input.Phone != nil {
		p := strings.TrimSpace(*input.Phone)
		if p == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "phone cannot be empty")
		}
		acc.Phone = &p
	}

	if err := s.repo.Save(acc); err != nil {
		if helper.IsDuplicateKey(err) {
			return nil, fiber.NewError(fiber.StatusConflict, "phone already in use")
		}
		return nil, err
	}

	resp := toAccountResponse(acc)
	return &resp, nil
}

// ADMIN

func (s *authService) SetStatus(accountID uint, status string) error {
	status = strings.TrimSpace(strings.ToLower(status))
	if !domain.ValidStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	acc, err := s.repo.FindByID(accountID)
	if err != nil || acc == nil {
		return fiber.NewError(fiber.StatusNotFound, "account not found")
	}

	// deletion is terminal
	if acc.Status == domain.StatusDeleted {
		return fiber.NewError(fiber.StatusBadRequest, "account is deleted")
	}

	if status == domain.StatusDeleted {
		acc.MarkDeleted()
	} else {
		acc.Status = status
	}

	if err := s.repo.Save(acc); err != nil {
		return err
	}
	publishEvent(s.producer, eventStatusChanged, acc.ID, acc.Email)
	return nil
}

// internal

func (s *authService) sendVerificationCode(ctx context.Context, acc *domain.Account) {
	code, _, err := s.otp.Issue(ctx, acc.Email)
	if err != nil {
		log.Printf("otp issue error for %s: %v", acc.Email, err)
		return
	}
	html, err := mailer.RenderOTP(acc.FirstName, code, int(s.otpTTL.Minutes()))
	if err != nil {
		log.Printf("otp template error: %v", err)
		return
	}
	s.sendMail(acc.Email, "Verify your email", html)
}

func (s *authService) sendMail(to, subject, html string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(to, subject, html); err != nil {
		log.Printf("mail send error to=%s subject=%q: %v", to, subject, err)
	}
}

func claimsFor(acc *domain.Account) dto.TokenClaims {
	return dto.TokenClaims{AccountID: acc.ID, Email: acc.Email, Role: acc.Role}
}

func toAccountResponse(acc *domain.Account) dto.AccountResponse {
	phone := ""
	if acc.Phone != nil {
		phone = *acc.Phone
	}
	return dto.AccountResponse{
		ID:            acc.ID,
		FirstName:     acc.FirstName,
		LastName:      acc.LastName,
		Email:         acc.Email,
		Phone:         phone,
		AvatarURL:     acc.AvatarURL,
		Role:          acc.Role,
		Status:        acc.Status,
		EmailVerified: acc.EmailVerified,
		LastLoginAt:   acc.LastLoginAt,
	}
}
