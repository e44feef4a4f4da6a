package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	RoleID    string
	RoleName  string
	Password  string
	IsActive  bool
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.first_name, u.last_name, u.role_id, r.name, u.password_hash, u.is_active
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE lower(u.email) = lower($1)
  `, email).Scan(&out.ID, &out.Email, &out.FirstName, &out.LastName, &out.RoleID, &out.RoleName, &out.Password, &out.IsActive)
	return out, err
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.first_name, u.last_name, u.role_id, r.name, u.password_hash, u.is_active
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.id = $1
  `, userID).Scan(&out.ID, &out.Email, &out.FirstName, &out.LastName, &out.RoleID, &out.RoleName, &out.Password, &out.IsActive)
	return out, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, hash string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2", hash, userID)
	return err
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM role_permissions rp
    JOIN permissions p ON rp.permission_id = p.id
    WHERE rp.role_id = $1 AND p.key = $2
  `, roleID, permission).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
