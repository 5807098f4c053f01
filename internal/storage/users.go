package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// CreateUser inserts a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, user *User) (*User, error) {
	perms, err := marshalPermissions(user.Permissions)
	if err != nil {
		return nil, err
	}

	builder := s.stbl.
		Insert("users").
		Columns("email", "password", "is_superuser", "permissions").
		Values(user.Email, user.Password, user.IsSuperuser, perms)

	id, err := s.insert(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID loads a user and their roles.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

// GetUserByEmail loads a user and their roles.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, sq.Eq{"email": email})
}

func (s *Store) getUser(ctx context.Context, pred sq.Sqlizer) (*User, error) {
	query, args, err := s.stbl.
		Select("id", "email", "password", "is_superuser", "permissions", "created_at").
		From("users").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	var (
		user  User
		perms string
	)

	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.IsSuperuser, &perms, timeScanner{&user.CreatedAt}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan user: %w", err)
	}

	if err := json.Unmarshal([]byte(perms), &user.Permissions); err != nil {
		return nil, fmt.Errorf("decode user permissions: %w", err)
	}

	roles, err := s.userRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	user.Roles = roles

	return &user, nil
}

func (s *Store) userRoles(ctx context.Context, userID int64) ([]Role, error) {
	query, args, err := s.stbl.
		Select("roles.id", "roles.name", "roles.permissions").
		From("roles").
		Join("user_roles ON user_roles.role_id = roles.id").
		Where(sq.Eq{"user_roles.user_id": userID}).
		OrderBy("roles.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build roles query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []Role

	for rows.Next() {
		var (
			role  Role
			perms string
		)

		if err := rows.Scan(&role.ID, &role.Name, &perms); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}

		if err := json.Unmarshal([]byte(perms), &role.Permissions); err != nil {
			return nil, fmt.Errorf("decode role permissions: %w", err)
		}

		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// UpdateUserPermissions replaces a user's direct permissions.
func (s *Store) UpdateUserPermissions(ctx context.Context, id int64, permissions []string) error {
	perms, err := marshalPermissions(permissions)
	if err != nil {
		return err
	}

	query, args, err := s.stbl.
		Update("users").
		Set("permissions", perms).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update permissions query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user permissions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user permissions: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// CreateRole inserts a role.
func (s *Store) CreateRole(ctx context.Context, role *Role) (*Role, error) {
	perms, err := marshalPermissions(role.Permissions)
	if err != nil {
		return nil, err
	}

	builder := s.stbl.
		Insert("roles").
		Columns("name", "permissions").
		Values(role.Name, perms)

	id, err := s.insert(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	role.ID = id

	return role, nil
}

// AssignRole links a role to a user.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	query, args, err := s.stbl.
		Insert("user_roles").
		Columns("user_id", "role_id").
		Values(userID, roleID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

func marshalPermissions(perms []string) (string, error) {
	if perms == nil {
		perms = []string{}
	}

	data, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("encode permissions: %w", err)
	}

	return string(data), nil
}

// insert runs an insert builder and returns the new row id, handling the
// RETURNING vs LastInsertId split between drivers.
func (s *Store) insert(ctx context.Context, builder sq.InsertBuilder) (int64, error) {
	if s.returning {
		query, args, err := builder.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, err
		}

		var id int64
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}

		return id, nil
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}
