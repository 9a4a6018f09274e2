package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/judgebox/executor"
	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/pipeline"
)

type mockPipeline struct {
	enqueued []model.Submission
	err      error
	status   pipeline.Status
}

func (m *mockPipeline) Enqueue(sub model.Submission) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, sub)
	return nil
}

func (m *mockPipeline) Status(context.Context) pipeline.Status {
	return m.status
}

func serve(t *testing.T, p Pipeline, opts RouterOptions, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := NewRouter(zaptest.NewLogger(t), p, opts)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExecute(t *testing.T) {
	sub := model.Submission{
		ID:         7,
		Language:   "java",
		Files:      []model.SubmissionFile{{Filename: "Main.java", Contents: []byte("class Main {}")}},
		EntryPoint: "Main",
		Problem:    "ref",
	}
	body, err := json.Marshal(sub)
	require.NoError(t, err)

	t.Run("Accepted", func(t *testing.T) {
		p := &mockPipeline{}
		w := serve(t, p, RouterOptions{}, http.MethodPost, "/execute", string(body))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"id":7}`, w.Body.String())
		require.Len(t, p.enqueued, 1)
		assert.Equal(t, sub, p.enqueued[0])
	})

	t.Run("NoExecutor", func(t *testing.T) {
		p := &mockPipeline{err: &executor.UnavailableError{Language: "java"}}
		w := serve(t, p, RouterOptions{}, http.MethodPost, "/execute", string(body))

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Contains(t, w.Body.String(), "no executor available")
	})

	t.Run("OtherEnqueueError", func(t *testing.T) {
		p := &mockPipeline{err: errors.New("boom")}
		w := serve(t, p, RouterOptions{}, http.MethodPost, "/execute", string(body))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		p := &mockPipeline{}
		w := serve(t, p, RouterOptions{}, http.MethodPost, "/execute", `{"id": "seven"`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, p.enqueued)
	})
}

func TestStatus(t *testing.T) {
	p := &mockPipeline{status: pipeline.Status{
		Name:      "judgebox-1",
		Languages: []string{"java"},
		Problems:  []string{"ref"},
		Queued:    []int64{3, 4},
	}}
	w := serve(t, p, RouterOptions{}, http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"judgebox-1","languages":["java"],"problems":["ref"],"queued":[3,4]}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	w := serve(t, &mockPipeline{}, RouterOptions{}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	t.Run("Enabled", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		pipeline.NewMetrics(reg)

		w := serve(t, &mockPipeline{}, RouterOptions{Gatherer: reg}, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "judgebox_queued_submissions")
	})

	t.Run("Disabled", func(t *testing.T) {
		w := serve(t, &mockPipeline{}, RouterOptions{}, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServerLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(zaptest.NewLogger(t), &mockPipeline{}, RouterOptions{})
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", r)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	t.Run("BindError", func(t *testing.T) {
		s := NewServer(zaptest.NewLogger(t), "256.0.0.1:http", r)
		assert.Error(t, s.Start(context.Background()))
	})
}
