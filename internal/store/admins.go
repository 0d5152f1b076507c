package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ronycse16b/soulcraft-orders/internal/database"
	"github.com/ronycse16b/soulcraft-orders/internal/models"
)

type CreateAdminRequest struct {
	Email       string
	Name        string
	Role        models.Role
	Permissions models.PermissionSet
}

// CreateAdminUser registers a back-office identity. The permission columns
// matter only for moderators but are stored as given.
func (s *Store) CreateAdminUser(ctx context.Context, req CreateAdminRequest) (*models.AdminUser, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", database.ErrInvalidOrder)
	}
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", database.ErrInvalidOrder, req.Role)
	}

	user := &models.AdminUser{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_users (email, name, role, can_create, can_read, can_update, can_delete,
		                         created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING id, email, name, role, can_create, can_read, can_update, can_delete,
		          created_at, updated_at, version`,
		req.Email, req.Name, req.Role,
		req.Permissions.Create, req.Permissions.Read, req.Permissions.Update, req.Permissions.Delete).
		Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.Permissions.Create,
			&user.Permissions.Read,
			&user.Permissions.Update,
			&user.Permissions.Delete,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Version,
		)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, database.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create admin user: %w", err)
	}

	return user, nil
}

// GetAdminUser is the identity-store lookup behind the access control gate.
func (s *Store) GetAdminUser(ctx context.Context, id int64) (*models.AdminUser, error) {
	user := &models.AdminUser{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, can_create, can_read, can_update, can_delete,
		       created_at, updated_at, version
		FROM admin_users
		WHERE id = $1`, id).
		Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.Permissions.Create,
			&user.Permissions.Read,
			&user.Permissions.Update,
			&user.Permissions.Delete,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Version,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin user: %w", err)
	}

	return user, nil
}
