package helper

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopyard/auth-service/internal/dto"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Auth signs and verifies the access/refresh token pair and wraps the
// password hash. Access and refresh tokens use distinct secrets so a
// leaked access secret cannot mint refresh tokens.
type Auth struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func SetupAuth(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) Auth {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return Auth{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

func (a Auth) GenerateAccessToken(claims dto.TokenClaims) (string, error) {
	return a.generate(claims, a.AccessSecret, a.AccessTTL)
}

func (a Auth) GenerateRefreshToken(claims dto.TokenClaims) (string, error) {
	return a.generate(claims, a.RefreshSecret, a.RefreshTTL)
}

// GenerateTokenPair signs both tokens from the same claim set.
func (a Auth) GenerateTokenPair(claims dto.TokenClaims) (dto.TokenPair, error) {
	access, err := a.GenerateAccessToken(claims)
	if err != nil {
		return dto.TokenPair{}, err
	}
	refresh, err := a.GenerateRefreshToken(claims)
	if err != nil {
		return dto.TokenPair{}, err
	}
	return dto.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (a Auth) generate(claims dto.TokenClaims, secret string, ttl time.Duration) (string, error) {
	if claims.AccountID == 0 || claims.Email == "" {
		return "", errors.New("required inputs are missing to generate token")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": claims.AccountID,
		"email":   claims.Email,
		"role":    claims.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.New("unable to sign the token")
	}
	return tokenStr, nil
}

func (a Auth) VerifyAccessToken(tokenString string) (dto.TokenClaims, error) {
	return a.verify(tokenString, a.AccessSecret)
}

func (a Auth) VerifyRefreshToken(tokenString string) (dto.TokenClaims, error) {
	return a.verify(tokenString, a.RefreshSecret)
}

func (a Auth) verify(tokenString, secret string) (dto.TokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return dto.TokenClaims{}, ErrInvalidToken
	}

	// support both "Bearer <token>" and "<token>"
	if strings.HasPrefix(strings.ToLower(tokenString), "bearer ") {
		parts := strings.SplitN(tokenString, " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return dto.TokenClaims{}, ErrInvalidToken
		}
		tokenString = strings.TrimSpace(parts[1])
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return dto.TokenClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return dto.TokenClaims{}, ErrInvalidToken
	}
	return claimsFromMap(claims)
}

// Decode extracts claims without checking the signature. Only good for
// expiry introspection, never for authorization decisions.
func (a Auth) Decode(tokenString string) (dto.TokenClaims, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(tokenString), claims)
	if err != nil {
		return dto.TokenClaims{}, ErrInvalidToken
	}
	return claimsFromMap(claims)
}

func claimsFromMap(claims jwt.MapClaims) (dto.TokenClaims, error) {
	id, ok := claims["user_id"].(float64)
	if !ok || id == 0 {
		return dto.TokenClaims{}, ErrInvalidToken
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return dto.TokenClaims{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)

	return dto.TokenClaims{
		AccountID: uint(id),
		Email:     email,
		Role:      role,
	}, nil
}

func (a Auth) GetCurrentUser(ctx *fiber.Ctx) (dto.TokenClaims, error) {
	u := ctx.Locals("user")
	claims, ok := u.(dto.TokenClaims)
	if !ok {
		return dto.TokenClaims{}, errors.New("missing auth user in context")
	}
	return claims, nil
}

func (a Auth) HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New("failed to hash password")
	}
	return string(hashed), nil
}

func (a Auth) VerifyPassword(plain, hashed string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		return errors.New("invalid email or password")
	}
	return nil
}
