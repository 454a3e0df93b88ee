package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shopyard/auth-service/internal/domain"
)

var ErrNotFound = gorm.ErrRecordNotFound

type AccountRepository interface {
	Create(acc *domain.Account) error
	Save(acc *domain.Account) error
	FindByID(id uint) (*domain.Account, error)
	FindByEmail(email string) (*domain.Account, error)
	// FindByEmailOrPhone backs the single duplicate probe at registration.
	FindByEmailOrPhone(email, phone string) (*domain.Account, error)
	FindByGoogleID(googleID string) (*domain.Account, error)
	// FindByResetToken matches hash AND unexpired expiry in one query, so
	// wrong and expired tokens are indistinguishable to the caller.
	FindByResetToken(tokenHash string, now time.Time) (*domain.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(acc *domain.Account) error {
	if acc == nil {
		return errors.New("nil account")
	}
	return r.db.Create(acc).Error
}

func (r *accountRepository) Save(acc *domain.Account) error {
	if acc == nil {
		return errors.New("nil account")
	}
	return r.db.Save(acc).Error
}

func (r *accountRepository) FindByID(id uint) (*domain.Account, error) {
	acc := &domain.Account{}
	if err := r.db.First(acc, id).Error; err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) FindByEmail(email string) (*domain.Account, error) {
	acc := &domain.Account{}
	if err := r.db.First(acc, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) FindByEmailOrPhone(email, phone string) (*domain.Account, error) {
	acc := &domain.Account{}
	if err := r.db.Where("email = ? OR phone = ?", email, phone).First(acc).Error; err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) FindByGoogleID(googleID string) (*domain.Account, error) {
	acc := &domain.Account{}
	if err := r.db.First(acc, "google_id = ?", googleID).Error; err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) FindByResetToken(tokenHash string, now time.Time) (*domain.Account, error) {
	acc := &domain.Account{}
	err := r.db.
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", tokenHash, now).
		First(acc).Error
	if err != nil {
		return nil, err
	}
	return acc, nil
}
