package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"content-safety/internal/fallback"
	"content-safety/internal/models"
	"content-safety/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) CheckContent(ctx context.Context, text, userID string, contentType models.ContentType, opts models.CheckOptions) models.Verdict {
	args := m.Called(ctx, text, userID, contentType, opts)
	return args.Get(0).(models.Verdict)
}

func (m *mockChecker) CheckImage(ctx context.Context, buf []byte) models.Verdict {
	args := m.Called(ctx, buf)
	return args.Get(0).(models.Verdict)
}

type fixture struct {
	svc        *SafetyService
	content    repository.ContentRepository
	reports    repository.ReportRepository
	moderation repository.ModerationRepository
}

func newFixture(t *testing.T, checker Checker) *fixture {
	t.Helper()

	db, err := repository.Open(repository.Config{
		Type: repository.DialectSQLite,
		Path: filepath.Join(t.TempDir(), "safety.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h, err := fallback.New()
	require.NoError(t, err)

	f := &fixture{
		content:    repository.NewContentRepository(db, zap.NewNop()),
		reports:    repository.NewReportRepository(db, zap.NewNop()),
		moderation: repository.NewModerationRepository(db, zap.NewNop()),
	}
	f.svc = NewSafetyService(checker, f.content, f.reports, f.moderation, h, EscalationConfig{}, zap.NewNop())
	return f
}

func (f *fixture) seed(t *testing.T, contentType models.ContentType, authorID, body string) *models.ContentItem {
	t.Helper()
	item := &models.ContentItem{AuthorID: authorID, Body: body}
	require.NoError(t, f.content.Create(context.Background(), contentType, item))
	return item
}

// seedReports stores n open reports without running escalation
func (f *fixture) seedReports(t *testing.T, targetID string, targetType models.TargetType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.reports.Save(context.Background(), &models.Report{
			ReporterID: fmt.Sprintf("seed-%d", i),
			TargetID:   targetID,
			TargetType: targetType,
			Reason:     "abuse",
		}))
	}
}

func (f *fixture) report(t *testing.T, targetID string, targetType models.TargetType) {
	t.Helper()
	rep, err := f.svc.Report(context.Background(), "reporter", targetID, targetType, "abuse", nil)
	require.NoError(t, err)
	require.NotNil(t, rep)
}

func TestCheckContent_WithoutChecker(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.svc.HasChecker())

	tests := []struct {
		text string
		safe bool
		code models.ReasonCode
	}{
		{text: "Totally not SPAM", code: models.ReasonSpam},
		{text: "glorifying violence", code: models.ReasonViolence},
		{text: "I hate this", code: models.ReasonHate},
		{text: "buy now click here", safe: true},
		{text: "lovely weather", safe: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := f.svc.CheckContent(context.Background(), tt.text, "u1", models.ContentPost, models.CheckOptions{})
			assert.Equal(t, tt.safe, got.Safe)
			assert.InDelta(t, 0.5, got.Confidence, 1e-9)
			if !tt.safe {
				assert.Equal(t, "Content flagged by safety check.", got.Reason)
				assert.Equal(t, tt.code, got.ReasonCode)
			}
		})
	}
}

func TestCheckImage_WithoutChecker(t *testing.T) {
	f := newFixture(t, nil)

	got := f.svc.CheckImage(context.Background(), make([]byte, 40))
	assert.False(t, got.Safe)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
}

func TestCheckContent_DelegatesToChecker(t *testing.T) {
	checker := new(mockChecker)
	opts := models.CheckOptions{OnlyFast: true}
	checker.On("CheckContent", mock.Anything, "hello", "u1", models.ContentReply, opts).
		Return(models.Allow(0.9, models.StageClassifier)).Once()

	f := newFixture(t, checker)
	got := f.svc.CheckContent(context.Background(), "hello", "u1", models.ContentReply, opts)
	assert.True(t, got.Safe)
	checker.AssertExpectations(t)
}

func TestPublish(t *testing.T) {
	checker := new(mockChecker)
	checker.On("CheckContent", mock.Anything, "great article", "u1", models.ContentPost, mock.Anything).
		Return(models.Allow(0.95, models.StageClassifier))
	checker.On("CheckContent", mock.Anything, "buy now click here", "u1", models.ContentPost, mock.Anything).
		Return(models.Reject("Content flagged as spam by automated filter.", models.ReasonSpam, 0.97, models.StageClassifier))

	f := newFixture(t, checker)
	ctx := context.Background()

	item, err := f.svc.Publish(ctx, models.ContentPost, "u1", "great article")
	require.NoError(t, err)

	stored, err := f.svc.GetContent(ctx, models.ContentPost, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "great article", stored.Body)

	_, err = f.svc.Publish(ctx, models.ContentPost, "u1", "buy now click here")
	require.ErrorIs(t, err, ErrRejected)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, models.ReasonSpam, rejected.Verdict.ReasonCode)

	_, err = f.svc.Publish(ctx, models.ContentPost, "", "x")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.GetContent(ctx, models.ContentPost, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPublish_RejectionIsRecordedAndAppealable(t *testing.T) {
	checker := new(mockChecker)
	checker.On("CheckContent", mock.Anything, "buy now click here", "u1", models.ContentReply, mock.Anything).
		Return(models.Reject("Content flagged as spam by automated filter.", models.ReasonSpam, 0.97, models.StageClassifier))

	f := newFixture(t, checker)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, models.ContentReply, "u1", "buy now click here")
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.NotEmpty(t, rejected.RecordID)

	rec, err := f.moderation.GetByID(ctx, rejected.RecordID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.SourceAutomated, rec.Source)
	assert.Equal(t, models.ReasonSpam, rec.ReasonCode)
	assert.Equal(t, models.TargetReply, rec.TargetType)
	assert.Equal(t, "buy now click here", rec.ContentSnapshot)

	_, err = f.svc.GetContent(ctx, models.ContentReply, rec.TargetID)
	assert.ErrorIs(t, err, models.ErrNotFound, "rejected content stays hidden")

	_, err = f.svc.SubmitAppeal(ctx, "u1", rec.ID, "not spam")
	require.NoError(t, err)
	_, err = f.svc.ResolveAppeal(ctx, rec.ID, true, "legitimate link")
	require.NoError(t, err)

	item, err := f.svc.GetContent(ctx, models.ContentReply, rec.TargetID)
	require.NoError(t, err)
	assert.Equal(t, "buy now click here", item.Body)
}

func TestReport_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Report(ctx, "r1", "p1", models.TargetPost, " ", nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.Report(ctx, "r1", "p1", "COMMENT", "abuse", nil)
	assert.ErrorIs(t, err, models.ErrInvalidTargetType)

	comment := "see screenshot"
	rep, err := f.svc.Report(ctx, "r1", "p1", "post", "abuse", &comment)
	require.NoError(t, err)
	assert.Equal(t, models.TargetPost, rep.TargetType)
	assert.Equal(t, models.ReportOpen, rep.Status)
}

func TestEscalation_TwoReportsNoRecheck(t *testing.T) {
	checker := new(mockChecker)
	f := newFixture(t, checker)
	post := f.seed(t, models.ContentPost, "author", "borderline post")

	f.report(t, post.ID, models.TargetPost)
	f.report(t, post.ID, models.TargetPost)

	checker.AssertNotCalled(t, "CheckContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscalation_ThirdReportRechecksOnce(t *testing.T) {
	checker := new(mockChecker)
	checker.On("CheckContent", mock.Anything, "borderline post", "author", models.ContentPost, models.CheckOptions{}).
		Return(models.Allow(0.8, models.StageCombined)).Once()

	f := newFixture(t, checker)
	post := f.seed(t, models.ContentPost, "author", "borderline post")

	for i := 0; i < 3; i++ {
		f.report(t, post.ID, models.TargetPost)
	}

	checker.AssertNumberOfCalls(t, "CheckContent", 1)
	stored, err := f.content.FindByID(context.Background(), models.ContentPost, post.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored, "safe re-check keeps the content")
}

func TestEscalation_UnsafeRecheckDeletes(t *testing.T) {
	checker := new(mockChecker)
	checker.On("CheckContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.Reject("Content contains harassment.", models.ReasonHarassment, 0.7, models.StageFallback))

	f := newFixture(t, checker)
	ctx := context.Background()
	post := f.seed(t, models.ContentPost, "author", "you are worthless")
	f.seedReports(t, post.ID, models.TargetPost, 2)

	f.report(t, post.ID, models.TargetPost)

	stored, err := f.content.FindByID(ctx, models.ContentPost, post.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	page, err := f.svc.ModerationHistory(ctx, "author", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	rec := page.Items[0]
	assert.Equal(t, models.SourceReportThreshold, rec.Source)
	assert.Equal(t, models.ReasonHarassment, rec.ReasonCode)
	assert.Equal(t, "you are worthless", rec.ContentSnapshot)
}

func TestEscalation_TenReportsDeleteReplyWithoutRecheck(t *testing.T) {
	checker := new(mockChecker)
	f := newFixture(t, checker)
	ctx := context.Background()
	reply := f.seed(t, models.ContentReply, "author", "reported reply")
	f.seedReports(t, reply.ID, models.TargetReply, 9)

	f.report(t, reply.ID, models.TargetReply)

	checker.AssertNotCalled(t, "CheckContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	stored, err := f.content.FindByID(ctx, models.ContentReply, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	page, err := f.svc.ListModerationRecords(ctx, models.ModerationFilter{Source: models.SourceReportThreshold})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Report threshold exceeded (10 reports)", page.Items[0].ReasonText)
	assert.Equal(t, models.ReasonOther, page.Items[0].ReasonCode)
	assert.InDelta(t, 1.0, page.Items[0].Confidence, 1e-9)
	assert.Equal(t, models.TargetReply, page.Items[0].TargetType)
}

func TestEscalation_AutoDeleteWithoutChecker(t *testing.T) {
	f := newFixture(t, nil)
	post := f.seed(t, models.ContentPost, "author", "spammy")
	f.seedReports(t, post.ID, models.TargetPost, 4)

	f.report(t, post.ID, models.TargetPost)
	stored, err := f.content.FindByID(context.Background(), models.ContentPost, post.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored, "re-check needs a checker")

	f.seedReports(t, post.ID, models.TargetPost, 4)
	f.report(t, post.ID, models.TargetPost)
	stored, err = f.content.FindByID(context.Background(), models.ContentPost, post.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEscalation_NonModeratableTargetsIgnored(t *testing.T) {
	checker := new(mockChecker)
	f := newFixture(t, checker)

	for _, target := range []models.TargetType{models.TargetUser, models.TargetDM} {
		f.seedReports(t, "x1", target, 11)
		f.report(t, "x1", target)
	}

	checker.AssertNotCalled(t, "CheckContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	page, err := f.svc.ListModerationRecords(context.Background(), models.ModerationFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestEscalation_MissingContentIsNoop(t *testing.T) {
	checker := new(mockChecker)
	f := newFixture(t, checker)

	f.seedReports(t, "ghost", models.TargetPost, 4)
	f.report(t, "ghost", models.TargetPost)

	f.seedReports(t, "ghost-reply", models.TargetReply, 12)
	f.report(t, "ghost-reply", models.TargetReply)

	checker.AssertNotCalled(t, "CheckContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	page, err := f.svc.ListModerationRecords(context.Background(), models.ModerationFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestEscalation_AlreadyDeletedIsNoop(t *testing.T) {
	checker := new(mockChecker)
	f := newFixture(t, checker)
	post := f.seed(t, models.ContentPost, "author", "gone soon")
	require.NoError(t, f.content.SoftDelete(context.Background(), models.ContentPost, post.ID))

	f.seedReports(t, post.ID, models.TargetPost, 2)
	f.report(t, post.ID, models.TargetPost)

	checker.AssertNotCalled(t, "CheckContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordModeration_CapsSnapshot(t *testing.T) {
	f := newFixture(t, nil)

	rec, err := f.svc.RecordModeration(context.Background(), ModerationInput{
		TargetType: models.TargetPost,
		TargetID:   "p1",
		AuthorID:   "u1",
		ReasonText: "manual",
		Snapshot:   strings.Repeat("ж", 12000),
	})
	require.NoError(t, err)
	assert.Equal(t, 10000, len([]rune(rec.ContentSnapshot)))
	assert.Equal(t, models.SourceAutomated, rec.Source)
	assert.Equal(t, models.ReasonOther, rec.ReasonCode)

	_, err = f.svc.RecordModeration(context.Background(), ModerationInput{TargetID: "p1"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestModerationStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record := func(code models.ReasonCode) {
		_, err := f.svc.RecordModeration(ctx, ModerationInput{
			TargetType: models.TargetPost, TargetID: "p", AuthorID: "u1", ReasonCode: code, ReasonText: "x",
		})
		require.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		record(models.ReasonSpam)
	}
	stats, err := f.svc.ModerationStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.False(t, stats.SuggestPermanentBan)

	record(models.ReasonHate)
	stats, err = f.svc.ModerationStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.ByReasonCode[models.ReasonSpam])
	assert.True(t, stats.SuggestPermanentBan)

	page, err := f.svc.ModerationHistory(ctx, "u1", 500, -3)
	require.NoError(t, err)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Len(t, page.Items, 5)

	page, err = f.svc.ListModerationRecords(ctx, models.ModerationFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
}

func TestAppeals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	post := f.seed(t, models.ContentPost, "u1", "misunderstood joke")
	require.NoError(t, f.content.SoftDelete(ctx, models.ContentPost, post.ID))

	rec, err := f.svc.RecordModeration(ctx, ModerationInput{
		TargetType: models.TargetPost, TargetID: post.ID, AuthorID: "u1",
		ReasonCode: models.ReasonHarassment, ReasonText: "Content contains harassment.",
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitAppeal(ctx, "someone-else", rec.ID, "not mine")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.SubmitAppeal(ctx, "u1", rec.ID, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.ResolveAppeal(ctx, rec.ID, true, "ok")
	assert.ErrorIs(t, err, models.ErrNoPendingAppeal)

	appealed, err := f.svc.SubmitAppeal(ctx, "u1", rec.ID, strings.Repeat("a", 6000))
	require.NoError(t, err)
	assert.Equal(t, models.AppealPending, appealed.AppealStatus)
	require.NotNil(t, appealed.AppealText)
	assert.Len(t, *appealed.AppealText, 5000)

	_, err = f.svc.SubmitAppeal(ctx, "u1", rec.ID, "again")
	assert.ErrorIs(t, err, models.ErrAppealExists)

	resolved, err := f.svc.ResolveAppeal(ctx, rec.ID, true, "It was a joke between friends")
	require.NoError(t, err)
	assert.Equal(t, models.AppealUpheld, resolved.AppealStatus)
	require.NotNil(t, resolved.AppealResolvedAt)

	restored, err := f.content.FindByID(ctx, models.ContentPost, post.ID)
	require.NoError(t, err)
	assert.NotNil(t, restored, "upheld appeal restores content")

	_, err = f.svc.ResolveAppeal(ctx, rec.ID, false, "twice")
	assert.ErrorIs(t, err, models.ErrNoPendingAppeal)

	_, err = f.svc.ResolveAppeal(ctx, "missing", false, "x")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppeals_RejectedKeepsContentDeleted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	post := f.seed(t, models.ContentPost, "u1", "bad post")
	require.NoError(t, f.content.SoftDelete(ctx, models.ContentPost, post.ID))
	rec, err := f.svc.RecordModeration(ctx, ModerationInput{TargetType: models.TargetPost, TargetID: post.ID, AuthorID: "u1"})
	require.NoError(t, err)

	_, err = f.svc.SubmitAppeal(ctx, "u1", rec.ID, "please")
	require.NoError(t, err)
	resolved, err := f.svc.ResolveAppeal(ctx, rec.ID, false, "Clear violation")
	require.NoError(t, err)
	assert.Equal(t, models.AppealRejected, resolved.AppealStatus)

	stored, err := f.content.FindByID(ctx, models.ContentPost, post.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAppeals_WindowExpired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.svc.RecordModeration(ctx, ModerationInput{TargetType: models.TargetPost, TargetID: "p1", AuthorID: "u1"})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(AppealWindow + time.Hour) }
	_, err = f.svc.SubmitAppeal(ctx, "u1", rec.ID, "too late?")
	assert.ErrorIs(t, err, models.ErrAppealWindowExpired)
}
