package brief

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/threadbrief/core/internal/modules/generation"
	"github.com/threadbrief/core/internal/modules/parse"
	"github.com/threadbrief/core/internal/modules/source"
	"github.com/threadbrief/core/internal/modules/transcript"
	"github.com/threadbrief/core/internal/pkg/response"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/briefs", h.create)
	rg.GET("/briefs/:id", h.get)
	rg.GET("/video-meta", h.videoMeta)
}

// POST /briefs
func (h *Handler) create(c *gin.Context) {
	var dto CreateBriefDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	b, err := h.svc.Create(c.Request.Context(), c.ClientIP(), &dto)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, toResponse(b, h.svc.ShareBaseURL()))
}

// GET /briefs/:id
func (h *Handler) get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFoundMsg(c, "brief not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(b, h.svc.ShareBaseURL()))
}

// GET /video-meta?url=
func (h *Handler) videoMeta(c *gin.Context) {
	videoID := source.ExtractVideoID(c.Query("url"))
	if videoID == "" {
		response.BadRequest(c, "please enter a valid YouTube URL")
		return
	}

	meta, err := h.svc.VideoMeta(c.Request.Context(), videoID)
	if err != nil {
		h.log.Warn("video metadata lookup failed", zap.String("video_id", videoID), zap.Error(err))
		response.BadGateway(c, "could not resolve video metadata")
		return
	}
	response.OK(c, gin.H{
		"title":            meta.Title,
		"duration_seconds": meta.DurationSeconds,
		"duration_minutes": float64(meta.DurationSeconds) / 60,
	})
}

// writeError maps pipeline failures onto HTTP statuses. Validation-class
// errors come back 400/422 with an actionable message; dependency failures
// keep their transient/permanent split.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr *source.ValidationError
		invalidSrc    *source.InvalidSourceError
		tooShort      *source.TooShortError
		tooLong       *source.TooLongError
		durationErr   *VideoDurationError
		transcriptErr *transcript.UnavailableError
		backendErr    *generation.BackendError
		parseErr      *parse.MissingFieldError
		rateErr       *RateLimitError
		timeoutErr    *TimeoutError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &invalidSrc), errors.As(err, &tooShort), errors.As(err, &durationErr):
		response.BadRequest(c, err.Error())
	case errors.As(err, &tooLong):
		response.UnprocessableEntity(c, err.Error())
	case errors.As(err, &transcriptErr):
		response.BadRequest(c, err.Error()+"; try pasting the text instead")
	case errors.As(err, &rateErr):
		if wait := time.Until(rateErr.ResetAt); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())))
		}
		response.TooManyRequests(c, rateErr.Error())
	case errors.As(err, &timeoutErr):
		response.GatewayTimeout(c, err.Error())
	case errors.As(err, &backendErr):
		if backendErr.Transient {
			response.BadGateway(c, "generation provider is unavailable, please retry shortly")
		} else {
			response.InternalError(c, errors.New("generation provider rejected the request"))
		}
	case errors.As(err, &parseErr):
		response.BadGateway(c, "generation output was malformed, please retry")
	default:
		response.InternalError(c, err)
	}
}
