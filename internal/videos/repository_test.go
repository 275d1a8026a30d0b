package videos

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshare/backend/internal/models"
)

var columns = []string{"id", "user_id", "title", "description", "tags", "uploaded_time", "status", "files"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestSaveDefaultsStatus(t *testing.T) {
	mock, repo := newMock(t)
	v := &models.Video{ID: "v1", UserID: "u1", Title: "cats", UploadedTime: 10}

	mock.ExpectExec(`INSERT INTO videos`).
		WithArgs("v1", "u1", "cats", "", []string(nil), int64(10), "NOT_UPLOADED", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetScansRecord(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM videos WHERE id = \$1`).
		WithArgs("v1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("v1", "u1", "cats", "funny", []string{"pets"}, int64(10), "READY", []byte(`{"720p":"https://cdn/v1_720p.mp4"}`)))

	v, err := repo.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, v.Status)
	assert.Equal(t, []string{"pets"}, v.Tags)
	assert.Equal(t, "https://cdn/v1_720p.mp4", v.Files[models.Label720p])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingIsNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`FROM videos WHERE id`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListByOwnerEmpty(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`WHERE user_id = \$1 ORDER BY uploaded_time`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(columns))

	list, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListByOwnerPreservesOrder(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`WHERE user_id`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("a", "u1", "first", "", []string{}, int64(1), "NOT_UPLOADED", []byte(`{}`)).
			AddRow("b", "u1", "second", "", []string{}, int64(2), "UPLOADED", []byte(`{}`)))

	list, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestUpdateMergesStatusAndFiles(t *testing.T) {
	mock, repo := newMock(t)
	var p models.Patch
	p.SetStatus(models.StatusUploaded).AddFiles(models.Files{"360p": "u360"})

	mock.ExpectExec(`UPDATE videos SET status = CASE WHEN video_status_rank\(\$2\) > video_status_rank\(status\) THEN \$2 ELSE status END, files = files \|\| \$3::jsonb WHERE id = \$1`).
		WithArgs("v1", "UPLOADED", []byte(`{"360p":"u360"}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), "v1", p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRecord(t *testing.T) {
	mock, repo := newMock(t)
	var p models.Patch
	p.SetStatus(models.StatusReady)
	mock.ExpectExec(`UPDATE videos`).WithArgs("gone", "READY").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.Update(context.Background(), "gone", p), models.ErrNotFound)
}

func TestUpdateEmptyPatchSkipsDatabase(t *testing.T) {
	mock, repo := newMock(t)
	require.NoError(t, repo.Update(context.Background(), "v1", models.Patch{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePropagatesDatabaseError(t *testing.T) {
	mock, repo := newMock(t)
	title := "new"
	mock.ExpectExec(`UPDATE videos SET title = \$2 WHERE id = \$1`).
		WithArgs("v1", "new").
		WillReturnError(errors.New("conn reset"))

	err := repo.Update(context.Background(), "v1", models.Patch{Title: &title})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestBuildUpdateArgumentOrder(t *testing.T) {
	title, desc := "t", "d"
	tags := []string{"x"}
	var p models.Patch
	p.SetStatus(models.StatusProcessing)
	p.Title, p.Description, p.Tags = &title, &desc, &tags

	q, args, err := buildUpdate("v1", p)
	require.NoError(t, err)
	assert.Contains(t, q, "title = $3")
	assert.Contains(t, q, "description = $4")
	assert.Contains(t, q, "tags = $5")
	assert.Equal(t, []any{"v1", "PROCESSING", "t", "d", []string{"x"}}, args)
}
