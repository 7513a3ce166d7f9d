package database

import (
	"context"
	"errors"
	"time"

	"magazyn-plikow/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrLinkNotFound = errors.New("share link not found")
var ErrLinkExpired = errors.New("share link has expired")

const linkColumns = `id, token, file_id, owner_id, description, authorized_users, expires_at, created_at`

func scanLink(row pgx.Row) (*models.ShareLink, error) {
	var link models.ShareLink
	err := row.Scan(
		&link.ID,
		&link.Token,
		&link.FileID,
		&link.OwnerID,
		&link.Description,
		&link.AuthorizedUsers,
		&link.ExpiresAt,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

type CreateShareLinkParams struct {
	Token       string
	FileID      string
	OwnerID     int64
	Description string
	// Optional subset of users allowed to redeem the link. Empty means any
	// holder of the token.
	AuthorizedUsers []int64
	ExpiresAt       time.Time
}

// CreateShareLink mints a time-boxed access grant for a file. Creation is
// gated by the same rule as direct sharing.
func (q *Queries) CreateShareLink(ctx context.Context, arg CreateShareLinkParams) (*models.ShareLink, error) {
	if _, err := q.Authorize(ctx, arg.FileID, arg.OwnerID); err != nil {
		return nil, err
	}

	if arg.AuthorizedUsers == nil {
		arg.AuthorizedUsers = []int64{}
	}

	query := `
		INSERT INTO share_links (token, file_id, owner_id, description, authorized_users, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + linkColumns

	return scanLink(q.db.QueryRow(ctx, query,
		arg.Token,
		arg.FileID,
		arg.OwnerID,
		arg.Description,
		arg.AuthorizedUsers,
		arg.ExpiresAt,
	))
}

func (q *Queries) GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	query := `SELECT ` + linkColumns + ` FROM share_links WHERE token = $1`

	link, err := scanLink(q.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

// ResolveShareLink validates a link and returns the file it grants access to.
// A link is valid only strictly before its expiry timestamp. When the link
// carries an authorized subset, only the listed users may redeem it; userID 0
// means an anonymous caller. Link access is a grant type of its own and does
// not consult the file's direct authorized set.
func (q *Queries) ResolveShareLink(ctx context.Context, token string, userID int64) (*models.File, error) {
	link, err := q.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}

	if !time.Now().Before(link.ExpiresAt) {
		return nil, ErrLinkExpired
	}

	if len(link.AuthorizedUsers) > 0 {
		allowed := false
		for _, id := range link.AuthorizedUsers {
			if id == userID {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, ErrAccessDenied
		}
	}

	file, err := q.GetFileByID(ctx, link.FileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}

func (q *Queries) ListShareLinks(ctx context.Context, ownerID int64, limit int, offset int) ([]models.ShareLink, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM share_links
		WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ShareLink
	for rows.Next() {
		var link models.ShareLink
		err := rows.Scan(
			&link.ID,
			&link.Token,
			&link.FileID,
			&link.OwnerID,
			&link.Description,
			&link.AuthorizedUsers,
			&link.ExpiresAt,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if links == nil {
		return []models.ShareLink{}, nil
	}

	return links, nil
}

func (q *Queries) DeleteShareLink(ctx context.Context, linkID int64, ownerID int64) (bool, error) {
	query := `DELETE FROM share_links WHERE id = $1 AND owner_id = $2`
	res, err := q.db.Exec(ctx, query, linkID, ownerID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}
