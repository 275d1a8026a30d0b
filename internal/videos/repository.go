package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidshare/backend/internal/models"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles video record persistence.
type Repository struct {
	db DBTX
}

// NewRepository creates a videos repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, user_id, title, COALESCE(description,''), tags, uploaded_time, status, files`

// Save writes the full record, replacing any existing record with the same id.
func (r *Repository) Save(ctx context.Context, v *models.Video) error {
	files, err := marshalFiles(v.Files)
	if err != nil {
		return err
	}
	status := v.Status
	if status == "" {
		status = models.StatusNotUploaded
	}
	const q = `INSERT INTO videos (id, user_id, title, description, tags, uploaded_time, status, files)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, title = EXCLUDED.title, description = EXCLUDED.description,
			tags = EXCLUDED.tags, uploaded_time = EXCLUDED.uploaded_time, status = EXCLUDED.status,
			files = EXCLUDED.files`
	if _, err := r.db.Exec(ctx, q, v.ID, v.UserID, v.Title, v.Description, v.Tags, v.UploadedTime, string(status), files); err != nil {
		return fmt.Errorf("save video %s: %w", v.ID, err)
	}
	return nil
}

// Get returns the record with id, or models.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*models.Video, error) {
	q := `SELECT ` + selectColumns + ` FROM videos WHERE id = $1`
	v, err := scanVideo(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", id, err)
	}
	return v, nil
}

// ListByOwner returns the records owned by userID, oldest upload first.
func (r *Repository) ListByOwner(ctx context.Context, userID string) ([]models.Video, error) {
	q := `SELECT ` + selectColumns + ` FROM videos WHERE user_id = $1 ORDER BY uploaded_time`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list videos for %s: %w", userID, err)
	}
	defer rows.Close()
	list := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Update applies patch to the record with id in a single statement. Files are merged by key
// and status only moves forward along the lifecycle. An empty patch is a no-op.
func (r *Repository) Update(ctx context.Context, id string, patch models.Patch) error {
	if patch.Empty() {
		return nil
	}
	q, args, err := buildUpdate(id, patch)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update video %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func buildUpdate(id string, patch models.Patch) (string, []any, error) {
	args := []any{id}
	var sets []string
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if patch.Status != nil {
		p := next(string(*patch.Status))
		sets = append(sets, fmt.Sprintf(
			"status = CASE WHEN video_status_rank(%s) > video_status_rank(status) THEN %s ELSE status END", p, p))
	}
	if patch.Title != nil {
		sets = append(sets, "title = "+next(*patch.Title))
	}
	if patch.Description != nil {
		sets = append(sets, "description = "+next(*patch.Description))
	}
	if patch.Tags != nil {
		sets = append(sets, "tags = "+next(*patch.Tags))
	}
	if len(patch.Files) > 0 {
		files, err := marshalFiles(patch.Files)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, "files = files || "+next(files)+"::jsonb")
	}
	return "UPDATE videos SET " + strings.Join(sets, ", ") + " WHERE id = $1", args, nil
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var (
		v      models.Video
		status string
		files  []byte
	)
	if err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &v.Tags, &v.UploadedTime, &status, &files); err != nil {
		return nil, err
	}
	v.Status = models.Status(status)
	v.Files = models.Files{}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &v.Files); err != nil {
			return nil, fmt.Errorf("decode files: %w", err)
		}
	}
	return &v, nil
}

func marshalFiles(files models.Files) ([]byte, error) {
	if files == nil {
		files = models.Files{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	return b, nil
}
