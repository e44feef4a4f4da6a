package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
)

type Service struct {
	Store    *Store
	Secret   string
	TokenTTL time.Duration
}

func NewService(store *Store, secret string, tokenTTL time.Duration) *Service {
	return &Service{Store: store, Secret: secret, TokenTTL: tokenTTL}
}

func (s *Service) Login(ctx context.Context, email, password string) (string, AuthUser, error) {
	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", AuthUser{}, ErrInvalidCredentials
		}
		return "", AuthUser{}, err
	}
	if !user.IsActive {
		return "", AuthUser{}, ErrAccountDisabled
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return "", AuthUser{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.Secret, Claims{
		UserID:   user.ID,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, s.TokenTTL)
	if err != nil {
		return "", AuthUser{}, err
	}

	_ = s.Store.UpdateLastLogin(ctx, user.ID)
	return token, user, nil
}

func (s *Service) Me(ctx context.Context, userID string) (AuthUser, error) {
	return s.Store.FindUserByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := CheckPassword(user.Password, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.Store.UpdateUserPassword(ctx, userID, hash)
}
