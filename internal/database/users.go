package database

import (
	"context"
	"errors"

	"magazyn-plikow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserNotFound = errors.New("user not found")
var ErrEmailTaken = errors.New("a user with this email already exists")
var ErrStorageLimitReached = errors.New("storage limit reached")

const userColumns = `id, email, password_hash, display_name, is_admin, storage_limit_bytes, storage_used_bytes, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.IsAdmin,
		&user.StorageLimitBytes,
		&user.StorageUsedBytes,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type CreateUserParams struct {
	Email             string
	PasswordHash      string
	DisplayName       *string
	StorageLimitBytes int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, display_name, storage_limit_bytes)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, arg.Email, arg.PasswordHash, arg.DisplayName, arg.StorageLimitBytes))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(q.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (q *Queries) UpdateUserDisplayName(ctx context.Context, userID int64, displayName *string) (*models.User, error) {
	query := `UPDATE users SET display_name = $1 WHERE id = $2 RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, displayName, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`
	_, err := q.db.Exec(ctx, query, newPasswordHash, userID)
	return err
}

// SetAdmin promotes or demotes a user. Role checks belong to the caller.
func (q *Queries) SetAdmin(ctx context.Context, userID int64, isAdmin bool) (*models.User, error) {
	query := `UPDATE users SET is_admin = $1 WHERE id = $2 RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, isAdmin, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	query := `DELETE FROM users WHERE id = $1`
	res, err := q.db.Exec(ctx, query, userID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// ReserveStorage adds deltaBytes to the user's usage counter, rejecting the
// reservation when the new total would meet or exceed the account limit.
// Landing exactly on the limit is rejected. Check and increment happen in a
// single conditional UPDATE, so two concurrent reservations cannot both pass
// the limit check against stale state.
func (q *Queries) ReserveStorage(ctx context.Context, userID int64, deltaBytes int64) (*models.User, error) {
	query := `
		UPDATE users
		SET storage_used_bytes = storage_used_bytes + $1
		WHERE id = $2 AND storage_used_bytes + $1 < storage_limit_bytes
		RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, deltaBytes, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, exErr := q.UserExists(ctx, userID)
			if exErr != nil {
				return nil, exErr
			}
			if !exists {
				return nil, ErrUserNotFound
			}
			return nil, ErrStorageLimitReached
		}
		return nil, err
	}
	return user, nil
}

// ReleaseStorage subtracts deltaBytes from the usage counter, clamping at
// zero. Over-release is absorbed silently, not reported.
func (q *Queries) ReleaseStorage(ctx context.Context, userID int64, deltaBytes int64) (*models.User, error) {
	query := `
		UPDATE users
		SET storage_used_bytes = GREATEST(0, storage_used_bytes - $1)
		WHERE id = $2
		RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, deltaBytes, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

type StorageUsage struct {
	LimitBytes int64 `json:"limit_bytes"`
	UsedBytes  int64 `json:"used_bytes"`
	// LeftBytes may be negative if the limit was lowered below current usage.
	LeftBytes int64 `json:"left_bytes"`
}

func (q *Queries) GetStorageUsage(ctx context.Context, userID int64) (*StorageUsage, error) {
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &StorageUsage{
		LimitBytes: user.StorageLimitBytes,
		UsedBytes:  user.StorageUsedBytes,
		LeftBytes:  user.StorageLimitBytes - user.StorageUsedBytes,
	}, nil
}

// SetStorageLimit changes the byte ceiling of an account. The requestor must
// exist; whether the requestor is allowed to do this is decided by the caller
// from verified claims, not re-derived here.
func (q *Queries) SetStorageLimit(ctx context.Context, userID int64, requestorID int64, newLimitBytes int64) (*models.User, error) {
	exists, err := q.UserExists(ctx, requestorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	query := `UPDATE users SET storage_limit_bytes = $1 WHERE id = $2 RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, newLimitBytes, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
