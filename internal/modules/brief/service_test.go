package brief

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/threadbrief/core/internal/models"
	"github.com/threadbrief/core/internal/modules/generation"
	"github.com/threadbrief/core/internal/modules/source"
	"github.com/threadbrief/core/internal/modules/transcript"
	"github.com/threadbrief/core/internal/pkg/clock"
	"github.com/threadbrief/core/internal/pkg/quota"
)

var sampleText = strings.Repeat("Thread post with a concrete point about deployment strategy and rollback safety. ", 8)

// countingStore wraps a Store to observe writes.
type countingStore struct {
	Store
	creates int
}

func (c *countingStore) Create(ctx context.Context, f *Fields) (*models.Brief, error) {
	c.creates++
	return c.Store.Create(ctx, f)
}

type fakeTranscripts struct {
	text string
	err  error
}

func (f *fakeTranscripts) Acquire(ctx context.Context, videoID, lang string) (string, error) {
	return f.text, f.err
}

type fakeMetadata struct {
	meta *transcript.Metadata
	err  error
}

func (f *fakeMetadata) Metadata(ctx context.Context, videoID string) (*transcript.Metadata, error) {
	return f.meta, f.err
}

// blockingBackend parks until the context expires.
type blockingBackend struct{}

func (blockingBackend) Generate(ctx context.Context, prompt string, mode models.ModeType, length models.LengthType) (*generation.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type serviceOpts struct {
	cfg         ServiceConfig
	limit       int
	transcripts TranscriptSource
	metadata    transcript.MetadataProvider
	backend     generation.Backend
}

func newTestService(t *testing.T, opts serviceOpts) (*Service, *countingStore) {
	t.Helper()
	if opts.limit == 0 {
		opts.limit = 10
	}
	if opts.transcripts == nil {
		opts.transcripts = &fakeTranscripts{err: errors.New("not configured in this test")}
	}
	if opts.backend == nil {
		opts.backend = generation.NewMockBackend()
	}
	if opts.cfg.ShareBaseURL == "" {
		opts.cfg.ShareBaseURL = "https://threadbrief.test"
	}

	// Pinned to the real current instant so quota ResetAt values stay in
	// the future for the Retry-After header.
	clk := &clock.Fixed{Instant: time.Now().UTC()}
	store := &countingStore{Store: NewMemoryStore(nil, clk)}
	svc := NewService(
		opts.cfg,
		store,
		quota.NewMemoryLimiter(opts.limit, clk),
		opts.limit,
		source.NewResolver(40000),
		opts.transcripts,
		opts.metadata,
		generation.NewBuilder(0),
		opts.backend,
		nil,
	)
	return svc, store
}

func TestCreateFromTextEndToEnd(t *testing.T) {
	svc, store := newTestService(t, serviceOpts{})
	ctx := context.Background()

	b, err := svc.Create(ctx, "1.2.3.4", &CreateBriefDTO{
		SourceType: models.SourceText,
		Source:     sampleText,
	})
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	require.NotEmpty(t, b.Title)
	require.NotEmpty(t, b.Overview)

	min, max := models.LengthBrief.BulletBounds()
	require.GreaterOrEqual(t, len(b.Bullets), min)
	require.LessOrEqual(t, len(b.Bullets), max)

	// Defaults applied.
	meta := b.Meta()
	require.Equal(t, models.ModeInsights, meta.Mode)
	require.Equal(t, models.LengthBrief, meta.Length)
	require.Equal(t, "en", meta.OutputLanguage)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, b, got)
	require.Equal(t, 1, store.creates)
}

func TestCreateFromVideoEndToEnd(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{
		transcripts: &fakeTranscripts{text: sampleText},
	})

	b, err := svc.Create(context.Background(), "1.2.3.4", &CreateBriefDTO{
		SourceType: models.SourceVideo,
		Source:     "https://youtu.be/dQw4w9WgXcQ",
		Length:     models.LengthTLDR,
	})
	require.NoError(t, err)
	require.Equal(t, models.SourceVideo, b.Meta().SourceType)
	_, max := models.LengthTLDR.BulletBounds()
	require.LessOrEqual(t, len(b.Bullets), max)
}

func TestCreateRejectsBadEnums(t *testing.T) {
	svc, store := newTestService(t, serviceOpts{limit: 1})
	ctx := context.Background()

	var validation *source.ValidationError
	_, err := svc.Create(ctx, "k", &CreateBriefDTO{SourceType: "podcast", Source: sampleText})
	require.ErrorAs(t, err, &validation)

	_, err = svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText, Mode: "haiku"})
	require.ErrorAs(t, err, &validation)

	_, err = svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText, Length: "epic"})
	require.ErrorAs(t, err, &validation)

	require.Zero(t, store.creates)

	// Enum rejections happen before quota: a limit of one admission is
	// still available after three invalid requests.
	_, err = svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.NoError(t, err)
}

func TestCreateRateLimited(t *testing.T) {
	svc, store := newTestService(t, serviceOpts{limit: 1})
	ctx := context.Background()

	_, err := svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.NoError(t, err)

	var rateErr *RateLimitError
	_, err = svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.ErrorAs(t, err, &rateErr)
	require.Equal(t, 1, rateErr.Limit)
	require.False(t, rateErr.ResetAt.IsZero())
	require.Equal(t, 1, store.creates)

	// A different requester is unaffected.
	_, err = svc.Create(ctx, "other", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.NoError(t, err)
}

func TestCreateTranscriptFailureStoresNothing(t *testing.T) {
	svc, store := newTestService(t, serviceOpts{
		transcripts: &fakeTranscripts{err: &transcript.UnavailableError{Reason: transcript.ReasonNoCaptions, Stage: "captions"}},
	})

	_, err := svc.Create(context.Background(), "k", &CreateBriefDTO{
		SourceType: models.SourceVideo,
		Source:     "https://youtu.be/dQw4w9WgXcQ",
	})
	var unavailable *transcript.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Zero(t, store.creates)
}

func TestCreateFailureConsumesQuotaByDefault(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{
		limit:       1,
		transcripts: &fakeTranscripts{err: &transcript.UnavailableError{Reason: transcript.ReasonNoCaptions, Stage: "captions"}},
	})
	ctx := context.Background()

	_, err := svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceVideo, Source: "https://youtu.be/dQw4w9WgXcQ"})
	var unavailable *transcript.UnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The failed attempt spent the day's only slot.
	var rateErr *RateLimitError
	_, err = svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.ErrorAs(t, err, &rateErr)
}

func TestCreateFailureRefundsWhenConfigured(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{
		cfg:         ServiceConfig{RefundOnFailure: true},
		limit:       1,
		transcripts: &fakeTranscripts{err: &transcript.UnavailableError{Reason: transcript.ReasonNoCaptions, Stage: "captions"}},
	})
	ctx := context.Background()

	_, err := svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceVideo, Source: "https://youtu.be/dQw4w9WgXcQ"})
	var unavailable *transcript.UnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The slot came back, so a corrected request still goes through.
	_, err = svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.NoError(t, err)
}

func TestCreateVideoDurationGuard(t *testing.T) {
	svc, store := newTestService(t, serviceOpts{
		cfg:         ServiceConfig{MaxVideoMinutes: 10},
		transcripts: &fakeTranscripts{text: sampleText},
		metadata:    &fakeMetadata{meta: &transcript.Metadata{Title: "long talk", DurationSeconds: 3600}},
	})

	_, err := svc.Create(context.Background(), "k", &CreateBriefDTO{
		SourceType: models.SourceVideo,
		Source:     "https://youtu.be/dQw4w9WgXcQ",
	})
	var durationErr *VideoDurationError
	require.ErrorAs(t, err, &durationErr)
	require.Equal(t, 10, durationErr.MaxMinutes)
	require.Zero(t, store.creates, "no transcript work is spent on an over-long video")
}

func TestCreateDurationGuardSkippedOnMetadataFailure(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{
		cfg:         ServiceConfig{MaxVideoMinutes: 10},
		transcripts: &fakeTranscripts{text: sampleText},
		metadata:    &fakeMetadata{err: errors.New("scrape failed")},
	})

	b, err := svc.Create(context.Background(), "k", &CreateBriefDTO{
		SourceType: models.SourceVideo,
		Source:     "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err, "the duration cap is a cost guard, not a correctness gate")
	require.NotEmpty(t, b.ID)
}

func TestCreateOverallTimeout(t *testing.T) {
	svc, store := newTestService(t, serviceOpts{
		cfg:     ServiceConfig{OverallTimeout: 20 * time.Millisecond},
		backend: blockingBackend{},
	})

	_, err := svc.Create(context.Background(), "k", &CreateBriefDTO{
		SourceType: models.SourceText,
		Source:     sampleText,
	})
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, 20*time.Millisecond, timeoutErr.After)
	require.Zero(t, store.creates)
}

func TestCreateClientCancellationIsNotATimeout(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{backend: blockingBackend{}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Create(ctx, "k", &CreateBriefDTO{SourceType: models.SourceText, Source: sampleText})
	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.False(t, errors.As(err, &timeoutErr), "client cancellation must not be reported as a pipeline timeout")
}

func TestVideoMeta(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{
		metadata: &fakeMetadata{meta: &transcript.Metadata{Title: "talk", DurationSeconds: 754}},
	})
	meta, err := svc.VideoMeta(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "talk", meta.Title)

	bare, _ := newTestService(t, serviceOpts{})
	_, err = bare.VideoMeta(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
}
