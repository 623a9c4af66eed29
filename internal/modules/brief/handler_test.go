package brief

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/threadbrief/core/internal/modules/transcript"
)

func newTestRouter(t *testing.T, opts serviceOpts) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t, opts)

	r := gin.New()
	NewHandler(svc, nil).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postBrief(t *testing.T, r *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/briefs", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerCreateThenGet(t *testing.T) {
	r := newTestRouter(t, serviceOpts{})

	w := postBrief(t, r, gin.H{
		"source_type": "text",
		"source":      sampleText,
		"mode":        "summary",
		"length":      "tldr",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID       string   `json:"id"`
		ShareURL string   `json:"share_url"`
		Title    string   `json:"title"`
		Bullets  []string `json:"bullets"`
		Meta     struct {
			Mode   string `json:"mode"`
			Length string `json:"length"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "https://threadbrief.test/b/"+created.ID, created.ShareURL)
	require.NotEmpty(t, created.Title)
	require.NotEmpty(t, created.Bullets)
	require.Equal(t, "summary", created.Meta.Mode)
	require.Equal(t, "tldr", created.Meta.Length)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/briefs/"+created.ID, nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	require.JSONEq(t, w.Body.String(), w2.Body.String())
}

func TestHandlerGetUnknownID(t *testing.T) {
	r := newTestRouter(t, serviceOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/briefs/zzzzzz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	requireEnvelope(t, w, http.StatusNotFound)
}

func TestHandlerCreateValidation(t *testing.T) {
	cases := []struct {
		name string
		body gin.H
		code int
	}{
		{"missing source", gin.H{"source_type": "text"}, http.StatusBadRequest},
		{"unknown source type", gin.H{"source_type": "podcast", "source": sampleText}, http.StatusBadRequest},
		{"text too short", gin.H{"source_type": "text", "source": "tiny"}, http.StatusBadRequest},
		{"bad video url", gin.H{"source_type": "video", "source": "https://vimeo.com/12345"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, serviceOpts{})
			w := postBrief(t, r, tc.body)
			require.Equal(t, tc.code, w.Code)
			requireEnvelope(t, w, tc.code)
		})
	}
}

func TestHandlerRateLimit(t *testing.T) {
	r := newTestRouter(t, serviceOpts{limit: 1})
	body := gin.H{"source_type": "text", "source": sampleText}

	require.Equal(t, http.StatusCreated, postBrief(t, r, body).Code)

	w := postBrief(t, r, body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	requireEnvelope(t, w, http.StatusTooManyRequests)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHandlerTranscriptUnavailable(t *testing.T) {
	r := newTestRouter(t, serviceOpts{
		transcripts: &fakeTranscripts{err: &transcript.UnavailableError{Reason: transcript.ReasonNoCaptions, Stage: "captions"}},
	})

	w := postBrief(t, r, gin.H{"source_type": "video", "source": "https://youtu.be/dQw4w9WgXcQ"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "try pasting the text instead")
}

func TestHandlerVideoMeta(t *testing.T) {
	r := newTestRouter(t, serviceOpts{
		metadata: &fakeMetadata{meta: &transcript.Metadata{Title: "talk", DurationSeconds: 90}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/video-meta?url=https://youtu.be/dQw4w9WgXcQ", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Title           string  `json:"title"`
		DurationSeconds int     `json:"duration_seconds"`
		DurationMinutes float64 `json:"duration_minutes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "talk", got.Title)
	require.Equal(t, 90, got.DurationSeconds)
	require.InDelta(t, 1.5, got.DurationMinutes, 1e-9)

	t.Run("bad url", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/video-meta?url=not-a-url", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func requireEnvelope(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	var env struct {
		OK      int    `json:"ok"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	require.Equal(t, 0, env.OK)
	require.Equal(t, code, env.Code)
	require.NotEmpty(t, env.Message)
}
