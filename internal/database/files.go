package database

import (
	"context"
	"errors"

	"magazyn-plikow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrFileNotFound = errors.New("file not found")
var ErrAccessDenied = errors.New("you do not have access to this resource")
var ErrAlreadyShared = errors.New("this user already has access to this resource")

// AccessLevel is the tri-state outcome of an authorization check. Any
// non-error outcome means "allowed"; callers that care can distinguish the
// owner from a grantee.
type AccessLevel int

const (
	AccessOwner AccessLevel = iota
	AccessShared
)

const fileColumns = `f.id, f.owner_id, f.name, f.path_fragment, f.size_bytes, f.mime_type, f.created_at`

const fileSelect = `
	SELECT ` + fileColumns + `,
		COALESCE(array_agg(g.user_id) FILTER (WHERE g.user_id IS NOT NULL), '{}')
	FROM files f
	LEFT JOIN file_grants g ON g.file_id = f.id
`

func scanFileRows(rows pgx.Rows) ([]models.File, error) {
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		var file models.File
		err := rows.Scan(
			&file.ID,
			&file.OwnerID,
			&file.Name,
			&file.PathFragment,
			&file.SizeBytes,
			&file.MimeType,
			&file.CreatedAt,
			&file.AuthorizedUsers,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.File{}, nil
	}

	return files, nil
}

type CreateFileParams struct {
	ID           string
	OwnerID      int64
	Name         string
	PathFragment string
	SizeBytes    int64
	MimeType     *string
}

func (q *Queries) CreateFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	query := `
		INSERT INTO files (id, owner_id, name, path_fragment, size_bytes, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, owner_id, name, path_fragment, size_bytes, mime_type, created_at
	`
	var file models.File
	err := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.Name,
		arg.PathFragment,
		arg.SizeBytes,
		arg.MimeType,
	).Scan(
		&file.ID,
		&file.OwnerID,
		&file.Name,
		&file.PathFragment,
		&file.SizeBytes,
		&file.MimeType,
		&file.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	file.AuthorizedUsers = []int64{}
	return &file, nil
}

func (q *Queries) GetFileByID(ctx context.Context, id string) (*models.File, error) {
	query := fileSelect + ` WHERE f.id = $1 GROUP BY f.id`

	rows, err := q.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}

	files, err := scanFileRows(rows)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

func (q *Queries) FileExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)`
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Authorize decides what a user may do with a file: they are the owner, they
// hold a direct grant, or they have no business touching it. Every operation
// that reads or mutates a file routes through this check first.
func (q *Queries) Authorize(ctx context.Context, fileID string, userID int64) (AccessLevel, error) {
	query := `
		SELECT f.owner_id,
			EXISTS(SELECT 1 FROM file_grants g WHERE g.file_id = f.id AND g.user_id = $2)
		FROM files f
		WHERE f.id = $1
	`
	var ownerID int64
	var granted bool
	err := q.db.QueryRow(ctx, query, fileID, userID).Scan(&ownerID, &granted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrFileNotFound
		}
		return 0, err
	}

	exists, err := q.UserExists(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrUserNotFound
	}

	if ownerID == userID {
		return AccessOwner, nil
	}
	if granted {
		return AccessShared, nil
	}
	return 0, ErrAccessDenied
}

// GrantAccess adds targetID to the file's authorized set. The granter is
// gated by the same rule as read access, so a grantee may pass the file on.
// Granting to a user who already holds access fails with ErrAlreadyShared and
// leaves the set unchanged.
func (q *Queries) GrantAccess(ctx context.Context, fileID string, granterID int64, targetID int64) (*models.File, error) {
	if _, err := q.Authorize(ctx, fileID, granterID); err != nil {
		return nil, err
	}

	exists, err := q.UserExists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	query := `INSERT INTO file_grants (file_id, user_id, granted_by) VALUES ($1, $2, $3)`
	_, err = q.db.Exec(ctx, query, fileID, targetID, granterID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyShared
		}
		return nil, err
	}

	return q.GetFileByID(ctx, fileID)
}

// RevokeAccess removes targetID from the authorized set. Revoking a user who
// never held access is a silent no-op.
func (q *Queries) RevokeAccess(ctx context.Context, fileID string, granterID int64, targetID int64) (*models.File, error) {
	if _, err := q.Authorize(ctx, fileID, granterID); err != nil {
		return nil, err
	}

	exists, err := q.UserExists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	query := `DELETE FROM file_grants WHERE file_id = $1 AND user_id = $2`
	if _, err := q.db.Exec(ctx, query, fileID, targetID); err != nil {
		return nil, err
	}

	return q.GetFileByID(ctx, fileID)
}

func (q *Queries) ListOwnedFiles(ctx context.Context, ownerID int64, limit int, offset int) ([]models.File, error) {
	query := fileSelect + `
		WHERE f.owner_id = $1
		GROUP BY f.id
		ORDER BY f.name LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanFileRows(rows)
}

// ListSharedByMe returns the subset of owned files whose authorized set is
// non-empty.
func (q *Queries) ListSharedByMe(ctx context.Context, ownerID int64, limit int, offset int) ([]models.File, error) {
	query := fileSelect + `
		WHERE f.owner_id = $1
			AND EXISTS(SELECT 1 FROM file_grants og WHERE og.file_id = f.id)
		GROUP BY f.id
		ORDER BY f.name LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanFileRows(rows)
}

func (q *Queries) ListSharedWithMe(ctx context.Context, userID int64, limit int, offset int) ([]models.File, error) {
	query := fileSelect + `
		WHERE EXISTS(SELECT 1 FROM file_grants og WHERE og.file_id = f.id AND og.user_id = $1)
		GROUP BY f.id
		ORDER BY f.name LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanFileRows(rows)
}

// DeleteFile removes the record and returns it so the caller can release the
// owner's quota and unlink the blob. Only the owner may delete.
func (q *Queries) DeleteFile(ctx context.Context, fileID string, ownerID int64) (*models.File, error) {
	file, err := q.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil || file.OwnerID != ownerID {
		return nil, ErrFileNotFound
	}

	query := `DELETE FROM files WHERE id = $1 AND owner_id = $2`
	if _, err := q.db.Exec(ctx, query, fileID, ownerID); err != nil {
		return nil, err
	}

	return file, nil
}
