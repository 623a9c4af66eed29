package brief

import (
	"context"
	"errors"
	"time"

	"github.com/threadbrief/core/internal/models"
	"github.com/threadbrief/core/internal/modules/generation"
	"github.com/threadbrief/core/internal/modules/parse"
	"github.com/threadbrief/core/internal/modules/source"
	"github.com/threadbrief/core/internal/modules/transcript"
	"github.com/threadbrief/core/internal/pkg/quota"
	"go.uber.org/zap"
)

// state names the steps of the creation pipeline, in order. Any state can
// fail; failure short-circuits the rest and nothing is stored.
type state string

const (
	stateReceived    state = "RECEIVED"
	stateRateChecked state = "RATE_CHECKED"
	stateResolved    state = "RESOLVED"
	stateTranscribed state = "TRANSCRIBED"
	statePrompted    state = "PROMPTED"
	stateGenerated   state = "GENERATED"
	stateParsed      state = "PARSED"
	stateStored      state = "STORED"
)

// TranscriptSource is the slice of transcript.Acquirer the service needs.
type TranscriptSource interface {
	Acquire(ctx context.Context, videoID, lang string) (string, error)
}

// ServiceConfig carries the orchestration knobs.
type ServiceConfig struct {
	ShareBaseURL    string
	OverallTimeout  time.Duration
	MaxVideoMinutes int
	// RefundOnFailure controls whether a pipeline failure after quota
	// admission gives the slot back. Off by default: failed attempts
	// consume quota.
	RefundOnFailure bool
}

// Service runs the request-scoped creation state machine. The only shared
// mutable state it touches is the store and the limiter, both of which are
// internally synchronized.
type Service struct {
	cfg         ServiceConfig
	store       Store
	limiter     quota.Limiter
	limit       int
	resolver    *source.Resolver
	transcripts TranscriptSource
	metadata    transcript.MetadataProvider // optional, for the duration guard and /video-meta
	builder     *generation.Builder
	backend     generation.Backend
	log         *zap.Logger
}

func NewService(
	cfg ServiceConfig,
	store Store,
	limiter quota.Limiter,
	limit int,
	resolver *source.Resolver,
	transcripts TranscriptSource,
	metadata transcript.MetadataProvider,
	builder *generation.Builder,
	backend generation.Backend,
	log *zap.Logger,
) *Service {
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = 3 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:         cfg,
		store:       store,
		limiter:     limiter,
		limit:       limit,
		resolver:    resolver,
		transcripts: transcripts,
		metadata:    metadata,
		builder:     builder,
		backend:     backend,
		log:         log,
	}
}

// Create runs the full pipeline for one request. The store write is the
// terminal atomic step: a failure anywhere earlier leaves no partial brief
// behind.
func (s *Service) Create(ctx context.Context, requesterKey string, dto *CreateBriefDTO) (*models.Brief, error) {
	dto.applyDefaults()
	if !dto.SourceType.Valid() {
		return nil, &source.ValidationError{Msg: "source_type must be \"video\" or \"text\""}
	}
	if !dto.Mode.Valid() {
		return nil, &source.ValidationError{Msg: "mode must be \"insights\" or \"summary\""}
	}
	if !dto.Length.Valid() {
		return nil, &source.ValidationError{Msg: "length must be \"tldr\", \"brief\" or \"detailed\""}
	}

	st := stateReceived

	decision, err := s.limiter.CheckAndIncrement(ctx, requesterKey)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &RateLimitError{Limit: s.limit, ResetAt: decision.ResetAt}
	}
	st = s.advance(st, stateRateChecked, requesterKey)

	pipeCtx, cancel := context.WithTimeout(ctx, s.cfg.OverallTimeout)
	defer cancel()

	b, err := s.run(pipeCtx, st, requesterKey, dto)
	if err != nil {
		err = s.mapDeadline(ctx, pipeCtx, err)
		s.log.Info("brief pipeline failed",
			zap.String("requester", requesterKey),
			zap.Error(err),
		)
		if s.cfg.RefundOnFailure {
			if rerr := s.limiter.Refund(context.WithoutCancel(ctx), requesterKey); rerr != nil {
				s.log.Warn("quota refund failed", zap.String("requester", requesterKey), zap.Error(rerr))
			}
		}
		return nil, err
	}
	return b, nil
}

// run covers RESOLVED through STORED under the pipeline deadline.
func (s *Service) run(ctx context.Context, st state, requesterKey string, dto *CreateBriefDTO) (*models.Brief, error) {
	input, err := s.resolver.Classify(dto.SourceType, dto.Source)
	if err != nil {
		return nil, err
	}
	st = s.advance(st, stateResolved, requesterKey)

	text := input.Text
	if input.VideoID != "" {
		if err := s.checkDuration(ctx, input.VideoID); err != nil {
			return nil, err
		}
		text, err = s.transcripts.Acquire(ctx, input.VideoID, dto.OutputLanguage)
		if err != nil {
			return nil, err
		}
		st = s.advance(st, stateTranscribed, requesterKey)
	}

	prompt := s.builder.BuildPrompt(text, dto.Mode, dto.Length, dto.OutputLanguage)
	st = s.advance(st, statePrompted, requesterKey)

	result, err := s.backend.Generate(ctx, prompt, dto.Mode, dto.Length)
	if err != nil {
		return nil, err
	}
	st = s.advance(st, stateGenerated, requesterKey)

	fields, err := parse.Parse(result.Text, dto.Length)
	if err != nil {
		return nil, err
	}
	st = s.advance(st, stateParsed, requesterKey)

	b, err := s.store.Create(ctx, &Fields{
		Title:        fields.Title,
		Overview:     fields.Overview,
		Bullets:      fields.Bullets,
		WhyItMatters: fields.WhyItMatters,
		Meta: models.BriefMeta{
			SourceType:     dto.SourceType,
			Mode:           dto.Mode,
			Length:         dto.Length,
			OutputLanguage: dto.OutputLanguage,
		},
	})
	if err != nil {
		return nil, err
	}
	s.advance(st, stateStored, requesterKey)

	s.log.Info("brief created",
		zap.String("id", b.ID),
		zap.String("source_type", string(dto.SourceType)),
		zap.String("backend", string(result.Backend)),
		zap.Duration("generation_latency", result.Latency),
		zap.Int("bullets", len(b.Bullets)),
	)
	return b, nil
}

// Get returns a stored brief by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Brief, error) {
	return s.store.Get(ctx, id)
}

// VideoMeta resolves title and duration for a video id.
func (s *Service) VideoMeta(ctx context.Context, videoID string) (*transcript.Metadata, error) {
	if s.metadata == nil {
		return nil, errors.New("video metadata provider not configured")
	}
	return s.metadata.Metadata(ctx, videoID)
}

// ShareBaseURL exposes the configured public base for response building.
func (s *Service) ShareBaseURL() string { return s.cfg.ShareBaseURL }

// Limit exposes the configured daily quota for error messages.
func (s *Service) Limit() int { return s.limit }

// checkDuration rejects over-long videos when metadata is available. A
// metadata failure is logged and waved through: the duration cap is a cost
// guard, not a correctness gate.
func (s *Service) checkDuration(ctx context.Context, videoID string) error {
	if s.metadata == nil || s.cfg.MaxVideoMinutes <= 0 {
		return nil
	}
	meta, err := s.metadata.Metadata(ctx, videoID)
	if err != nil {
		s.log.Warn("video metadata lookup failed, skipping duration guard",
			zap.String("video_id", videoID), zap.Error(err))
		return nil
	}
	minutes := float64(meta.DurationSeconds) / 60
	if meta.DurationSeconds > 0 && minutes > float64(s.cfg.MaxVideoMinutes) {
		return &VideoDurationError{Minutes: minutes, MaxMinutes: s.cfg.MaxVideoMinutes}
	}
	return nil
}

func (s *Service) advance(from, to state, requesterKey string) state {
	s.log.Debug("pipeline state",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("requester", requesterKey),
	)
	return to
}

// mapDeadline turns a pipeline-deadline expiry into TimeoutError while
// leaving client cancellations and stage-level timeouts untouched.
func (s *Service) mapDeadline(parent, pipe context.Context, err error) error {
	if errors.Is(pipe.Err(), context.DeadlineExceeded) && parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{After: s.cfg.OverallTimeout}
	}
	return err
}
