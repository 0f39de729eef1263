package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"content-safety/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(Config{Type: DialectSQLite, Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db, DialectSQLite, zap.NewNop()))
	require.Error(t, Migrate(db, "oracle", zap.NewNop()))
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(Config{Type: "mongodb"}, zap.NewNop())
	require.Error(t, err)
}

func TestContentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(openTestDB(t), zap.NewNop())

	reply := &models.ContentItem{AuthorID: "u1", Body: "nice photo"}
	require.NoError(t, repo.Create(ctx, models.ContentReply, reply))
	require.NotEmpty(t, reply.ID)

	got, err := repo.FindByID(ctx, models.ContentReply, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nice photo", got.Body)
	assert.Equal(t, "u1", got.AuthorID)

	// posts and replies are separate stores
	got, err = repo.FindByID(ctx, models.ContentPost, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SoftDelete(ctx, models.ContentReply, reply.ID))
	got, err = repo.FindByID(ctx, models.ContentReply, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "soft-deleted content is not found")

	require.NoError(t, repo.Restore(ctx, models.ContentReply, reply.ID))
	got, err = repo.FindByID(ctx, models.ContentReply, reply.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	assert.ErrorIs(t, repo.SoftDelete(ctx, models.ContentPost, "missing"), models.ErrNotFound)
	assert.ErrorIs(t, repo.Create(ctx, "story", &models.ContentItem{}), models.ErrInvalidInput)
}

func TestContentRepository_RecentBodiesByAuthor(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(openTestDB(t), zap.NewNop())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, models.ContentPost, &models.ContentItem{
			AuthorID:  "u1",
			Body:      fmt.Sprintf("post %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, models.ContentPost, &models.ContentItem{AuthorID: "u2", Body: "other"}))

	bodies, err := repo.RecentBodiesByAuthor(ctx, models.ContentPost, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"post 4", "post 3", "post 2"}, bodies)

	bodies, err = repo.RecentBodiesByAuthor(ctx, models.ContentReply, "u1", 50)
	require.NoError(t, err)
	assert.Empty(t, bodies)
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewReportRepository(db, zap.NewNop())

	comment := "so rude"
	for i := 0; i < 3; i++ {
		r := &models.Report{ReporterID: fmt.Sprintf("r%d", i), TargetID: "p1", TargetType: models.TargetPost, Reason: "abuse", Comment: &comment}
		require.NoError(t, repo.Save(ctx, r))
		assert.Equal(t, models.ReportOpen, r.Status)
		assert.NotEmpty(t, r.ID)
	}
	require.NoError(t, repo.Save(ctx, &models.Report{ReporterID: "r9", TargetID: "p1", TargetType: models.TargetReply, Reason: "abuse"}))
	require.NoError(t, repo.Save(ctx, &models.Report{ReporterID: "r9", TargetID: "p1", TargetType: models.TargetPost, Reason: "abuse", Status: models.ReportDismissed}))

	count, err := repo.CountOpen(ctx, "p1", models.TargetPost)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = repo.CountOpen(ctx, "p1", models.TargetReply)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestModerationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewModerationRepository(openTestDB(t), zap.NewNop())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codes := []models.ReasonCode{models.ReasonSpam, models.ReasonSpam, models.ReasonHate}
	var ids []string
	for i, code := range codes {
		rec := &models.ModerationRecord{
			TargetType: models.TargetPost,
			TargetID:   fmt.Sprintf("p%d", i),
			AuthorID:   "u1",
			ReasonCode: code,
			ReasonText: "flagged",
			Confidence: 0.9,
			Source:     models.SourceAutomated,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Save(ctx, rec))
		ids = append(ids, rec.ID)
	}
	require.NoError(t, repo.Save(ctx, &models.ModerationRecord{
		TargetType: models.TargetReply, TargetID: "r1", AuthorID: "u2",
		ReasonCode: models.ReasonOther, ReasonText: "Report threshold exceeded (10 reports)",
		Confidence: 1, Source: models.SourceReportThreshold,
	}))

	got, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.AppealNone, got.AppealStatus)
	assert.Nil(t, got.AppealText)
	assert.True(t, base.Equal(got.CreatedAt))

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	items, total, err := repo.List(ctx, models.ModerationFilter{AuthorID: "u1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, ids[2], items[0].ID, "newest first")

	items, total, err = repo.List(ctx, models.ModerationFilter{Source: models.SourceReportThreshold, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "u2", items[0].AuthorID)

	items, total, err = repo.List(ctx, models.ModerationFilter{ReasonCode: models.ReasonAdvertising, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	counts, err := repo.CountByReasonCode(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[models.ReasonCode]int{models.ReasonSpam: 2, models.ReasonHate: 1}, counts)

	text := "I was joking"
	now := time.Now().UTC()
	got.AppealStatus = models.AppealPending
	got.AppealText = &text
	got.AppealedAt = &now
	require.NoError(t, repo.UpdateAppeal(ctx, got))

	got, err = repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.AppealPending, got.AppealStatus)
	require.NotNil(t, got.AppealText)
	assert.Equal(t, text, *got.AppealText)
	require.NotNil(t, got.AppealedAt)

	assert.ErrorIs(t, repo.UpdateAppeal(ctx, &models.ModerationRecord{ID: "nope", AppealStatus: models.AppealPending}), models.ErrNotFound)
}
