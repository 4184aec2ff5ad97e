package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipthumb/internal/job"
	"github.com/maauso/clipthumb/internal/preview"
)

// mockGenerator implements job.Generator for testing.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, sourcePath string, opts preview.Options) (preview.Result, error) {
	args := m.Called(ctx, sourcePath, opts)
	return args.Get(0).(preview.Result), args.Error(1)
}

// mockPublisher implements storage.Publisher for testing.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key string, data io.Reader) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	handlers  *Handlers
	router    http.Handler
	service   *job.PreviewService
	generator *mockGenerator
	repo      job.Repository
}

func newTestEnv(t *testing.T, svcOpts ...job.ServiceOption) *testEnv {
	t.Helper()
	repo := job.NewMemoryRepository()
	gen := &mockGenerator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := job.NewPreviewService(repo, gen, logger, svcOpts...)

	// Jobs are processed explicitly so assertions see deterministic state.
	h := NewHandlers(svc, logger, WithAsyncProcessing(false))
	return &testEnv{
		handlers:  h,
		router:    NewRouter(h, logger, DefaultConfig()),
		service:   svc,
		generator: gen,
		repo:      repo,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Publishing)
}

func TestHealth_PublishingEnabled(t *testing.T) {
	env := newTestEnv(t, job.WithPublisher(&mockPublisher{}))

	rec := env.do(t, http.MethodGet, "/health", "")

	resp := decode[HealthResponse](t, rec)
	assert.True(t, resp.Publishing)
}

func TestCreatePreview_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/previews", `{"source_path":"/videos/a.mp4","options":{"quality":0,"format":"mp4"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[CreatePreviewResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.ID, "prv_"))
	assert.Equal(t, string(job.StatusInQueue), resp.Status)

	stored, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "/videos/a.mp4", stored.SourcePath)
	assert.Equal(t, 0, stored.Options.Quality)
	assert.Equal(t, preview.FormatMP4, stored.Options.Format)
	assert.Equal(t, preview.DefaultSectionDuration, stored.Options.SectionDuration)
	assert.True(t, stored.Options.AutoFrames)
}

func TestCreatePreview_DefaultsWithoutOptions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/previews", `{"source_path":"/videos/a.mp4"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[CreatePreviewResponse](t, rec)
	stored, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, preview.DefaultOptions(), stored.Options)
}

func TestCreatePreview_FractionalFramesPerSection(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/previews", `{"source_path":"/v.mp4","options":{"autoFrames":false,"framesPerSection":12.5}}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[CreatePreviewResponse](t, rec)
	stored, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, stored.Options.FramesPerSection, 1e-9)
	assert.False(t, stored.Options.AutoFrames)
}

func TestCreatePreview_ExplicitSections(t *testing.T) {
	env := newTestEnv(t)

	body := `{"source_path":"/v.mp4","options":{"sections":[{"startTime":0,"duration":2},{"startTime":10.5,"duration":1}]}}`
	rec := env.do(t, http.MethodPost, "/previews", body)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[CreatePreviewResponse](t, rec)
	stored, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, []preview.Section{
		{StartTime: 0, Duration: 2},
		{StartTime: 10.5, Duration: 1},
	}, stored.Options.Sections)
}

func TestCreatePreview_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid JSON", `{not json`, "INVALID_JSON"},
		{"missing source", `{"options":{}}`, "VALIDATION_ERROR"},
		{"quality above range", `{"source_path":"/v.mp4","options":{"quality":101}}`, "VALIDATION_ERROR"},
		{"unknown format", `{"source_path":"/v.mp4","options":{"format":"webm"}}`, "VALIDATION_ERROR"},
		{"zero frames per section", `{"source_path":"/v.mp4","options":{"framesPerSection":0}}`, "VALIDATION_ERROR"},
		{"too few colors", `{"source_path":"/v.mp4","options":{"gifColors":1}}`, "VALIDATION_ERROR"},
		{"section without duration", `{"source_path":"/v.mp4","options":{"sections":[{"startTime":1}]}}`, "VALIDATION_ERROR"},
		{"section with zero duration", `{"source_path":"/v.mp4","options":{"sections":[{"startTime":1,"duration":0}]}}`, "VALIDATION_ERROR"},
		{"negative section start", `{"source_path":"/v.mp4","options":{"sections":[{"startTime":-1,"duration":1}]}}`, "VALIDATION_ERROR"},
		{"publish without publisher", `{"source_path":"/v.mp4","publish":true}`, "PUBLISHING_DISABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(t, http.MethodPost, "/previews", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetPreview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.service.CreateJob(ctx, job.CreatePreviewInput{
		SourcePath: "/v.mp4",
		Options:    preview.DefaultOptions(),
	})
	require.NoError(t, err)

	t.Run("queued", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/previews/"+created.ID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[PreviewResponse](t, rec)
		assert.Equal(t, created.ID, resp.ID)
		assert.Equal(t, string(job.StatusInQueue), resp.Status)
		assert.Equal(t, "gif", resp.Format)
		assert.Nil(t, resp.Result)
		assert.Nil(t, resp.StartedAt)
	})

	t.Run("completed", func(t *testing.T) {
		result := preview.Result{Path: "/cache/x.gif", Width: 32, Height: 24, Format: preview.FormatGIF, TotalFrames: 10}
		env.generator.On("Generate", mock.Anything, "/v.mp4", mock.Anything).Return(result, nil).Once()
		_, err := env.service.ProcessJob(ctx, created.ID)
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/previews/"+created.ID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[PreviewResponse](t, rec)
		assert.Equal(t, string(job.StatusCompleted), resp.Status)
		require.NotNil(t, resp.Result)
		assert.Equal(t, "/cache/x.gif", resp.Result.Path)
		assert.Equal(t, 10, resp.Result.TotalFrames)
		assert.NotNil(t, resp.StartedAt)
		assert.NotNil(t, resp.CompletedAt)
	})
}

func TestGetPreview_Failed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.service.CreateJob(ctx, job.CreatePreviewInput{SourcePath: "/missing.mp4", Options: preview.DefaultOptions()})
	require.NoError(t, err)
	env.generator.On("Generate", mock.Anything, "/missing.mp4", mock.Anything).
		Return(preview.Result{}, errors.New("source not found")).Once()
	_, err = env.service.ProcessJob(ctx, created.ID)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/previews/"+created.ID, "")

	resp := decode[PreviewResponse](t, rec)
	assert.Equal(t, string(job.StatusFailed), resp.Status)
	assert.Equal(t, "source not found", resp.Error)
	assert.Nil(t, resp.Result)
}

func TestGetPreview_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/previews/prv_nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestListPreviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/previews", "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[ListPreviewsResponse](t, rec)
	assert.NotNil(t, empty.Previews)
	assert.Empty(t, empty.Previews)

	first, err := env.service.CreateJob(ctx, job.CreatePreviewInput{SourcePath: "/a.mp4", Options: preview.DefaultOptions()})
	require.NoError(t, err)
	second, err := env.service.CreateJob(ctx, job.CreatePreviewInput{SourcePath: "/b.mp4", Options: preview.DefaultOptions()})
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/previews", "")
	list := decode[ListPreviewsResponse](t, rec)
	require.Len(t, list.Previews, 2)
	ids := []string{list.Previews[0].ID, list.Previews[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}

func TestGetPreviewFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	artifact := filepath.Join(t.TempDir(), "abc_def.gif")
	content := []byte("GIF89a-test")
	require.NoError(t, os.WriteFile(artifact, content, 0o600))

	created, err := env.service.CreateJob(ctx, job.CreatePreviewInput{SourcePath: "/v.mp4", Options: preview.DefaultOptions()})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/previews/"+created.ID+"/file", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.generator.On("Generate", mock.Anything, "/v.mp4", mock.Anything).
		Return(preview.Result{Path: artifact, Format: preview.FormatGIF}, nil).Once()
	_, err = env.service.ProcessJob(ctx, created.ID)
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/previews/"+created.ID+"/file", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())

	require.NoError(t, os.Remove(artifact))
	rec = env.do(t, http.MethodGet, "/previews/"+created.ID+"/file", "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestCreatePreview_AsyncProcessing(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandlers(env.service, nil)
	router := NewRouter(h, nil, DefaultConfig())

	result := preview.Result{Path: "/cache/a.gif", Format: preview.FormatGIF}
	env.generator.On("Generate", mock.Anything, "/a.mp4", mock.Anything).Return(result, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/previews", bytes.NewBufferString(`{"source_path":"/a.mp4"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[CreatePreviewResponse](t, rec)

	env.service.Wait()

	stored, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, stored.Status)
	env.generator.AssertExpectations(t)
}

func TestDeletePreview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.service.CreateJob(ctx, job.CreatePreviewInput{SourcePath: "/v.mp4", Options: preview.DefaultOptions()})
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/previews/"+created.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_ACTIVE", decode[ErrorResponse](t, rec).Code)

	env.generator.On("Generate", mock.Anything, "/v.mp4", mock.Anything).
		Return(preview.Result{Path: "/cache/v.gif"}, nil).Once()
	_, err = env.service.ProcessJob(ctx, created.ID)
	require.NoError(t, err)

	rec = env.do(t, http.MethodDelete, "/previews/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/previews/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
