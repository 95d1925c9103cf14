package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

const userColumns = `
	id, name, email, role, institution_id, department, is_active,
	password_hash, created_at, updated_at, last_login`

func (repo *userRepository) get(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, query, args...)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	return usr, errors.Wrap(err, "getting user")
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	excluded := make([]int, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND NOT (id = ANY($2)))`,
		email, pq.Array(excluded))
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
	INSERT INTO users (
		name, email, role, institution_id, department, is_active,
		password_hash, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		usr.Name, usr.Email, usr.Role, usr.InstitutionID, usr.Department,
		usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.db.SelectContext(ctx, &users, `SELECT`+userColumns+` FROM users ORDER BY created_at DESC`)
	return users, errors.Wrap(err, "querying users")
}

func (repo *userRepository) QueryUsersByInstitution(ctx context.Context, instID int) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.db.SelectContext(ctx, &users,
		`SELECT`+userColumns+` FROM users WHERE institution_id = $1 ORDER BY created_at DESC`, instID)
	return users, errors.Wrap(err, "querying institution users")
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.get(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.get(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1`, email)
}

func (repo *userRepository) GetInstitutionAdmin(ctx context.Context, instID int) (user.User, error) {
	return repo.get(ctx,
		`SELECT`+userColumns+` FROM users WHERE institution_id = $1 AND role = $2 ORDER BY id LIMIT 1`,
		instID, user.RoleInstitutionAdmin)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	query := `
	UPDATE users SET
		name = COALESCE(NULLIF($1, ''), name),
		email = COALESCE(NULLIF($2, ''), email),
		role = COALESCE(NULLIF($3, ''), role),
		institution_id = COALESCE($4, institution_id),
		department = COALESCE(NULLIF($5, ''), department),
		password_hash = COALESCE(NULLIF($6, ''::bytea), password_hash),
		is_active = COALESCE($7, is_active),
		updated_at = $8
	WHERE id = $9`
	updatedAt := usr.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := repo.db.ExecContext(ctx, query,
		usr.Name, usr.Email, usr.Role, usr.InstitutionID, usr.Department,
		usr.PasswordHash, isActive, updatedAt, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	usr.LastLogin = time.Now().UTC()
	_, err := repo.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, usr.LastLogin, usr.ID)
	return usr, errors.Wrap(err, "setting last login")
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}
