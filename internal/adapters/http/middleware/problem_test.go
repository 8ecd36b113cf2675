package middleware_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/cascade/internal/adapters/http/dto"
	"github.com/jsamuelsen11/cascade/internal/adapters/http/middleware"
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/domain"
)

func TestProblem_WritesProblemJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "client error",
			err:        domain.NewHTTPError(http.StatusConflict, "job already running"),
			wantStatus: http.StatusConflict,
			wantDetail: "job already running",
		},
		{
			name:       "sentinel",
			err:        fmt.Errorf("loading report: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantDetail: "loading report: not found",
		},
		{
			name:       "server fault hides detail",
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &sinkRecorder{}
			req := httptest.NewRequest(http.MethodGet, "/proxy/reports?x=1", http.NoBody)
			rec := run(t, sink, req, middleware.Problem(), respond(func(c *appctx.Context) error {
				c.Set("Content-Length", "999")
				return tt.err
			}))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, dto.ProblemContentType, rec.Header().Get("Content-Type"))

			var p dto.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p), "body %q", rec.Body.String())
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, http.StatusText(tt.wantStatus), p.Title)
			assert.Equal(t, tt.wantDetail, p.Detail)
			assert.Equal(t, "/proxy/reports?x=1", p.Instance)

			errs := sink.Errors()
			require.Len(t, errs, 1, "the error must reach the sink exactly once")
			assert.ErrorIs(t, errs[0], tt.err)
		})
	}
}

func TestProblem_PassesSuccessThrough(t *testing.T) {
	t.Parallel()

	sink := &sinkRecorder{}
	rec := run(t, sink, nil, middleware.Problem(), respond(func(c *appctx.Context) error {
		c.SetBody("fine")
		return nil
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
	assert.Empty(t, sink.Errors())
}

func TestProblem_HeadersAlreadySent(t *testing.T) {
	t.Parallel()

	boom := errors.New("midway")
	var got error
	outer := func(_ *appctx.Context, next appctx.Next) error {
		got = next()
		return got
	}

	sink := &sinkRecorder{}
	rec := run(t, sink, nil, outer, middleware.Problem(), respond(func(c *appctx.Context) error {
		c.Res().WriteHeader(http.StatusAccepted)
		_, _ = c.Res().Write([]byte("partial"))
		return boom
	}))

	assert.ErrorIs(t, got, boom, "the error should propagate when the response cannot change")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	assert.Len(t, sink.Errors(), 1)
}

func TestProblem_ValidationFields(t *testing.T) {
	t.Parallel()

	rec := run(t, nil, nil, middleware.Problem(), respond(func(*appctx.Context) error {
		return &domain.ValidationError{Fields: map[string]string{"limit": "must be positive"}}
	}))

	var p dto.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, http.StatusBadRequest, p.Status)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "query.limit", p.Errors[0].Location)
}
