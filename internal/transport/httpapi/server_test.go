package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/genricoloni/medialib/internal/dispatcher"
	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/projector"
	"github.com/genricoloni/medialib/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleCall(t *testing.T) {
	denied := domain.AuthorizationDenied

	tests := []struct {
		name         string
		method       string
		body         string
		result       dispatcher.Result
		err          error
		expectStatus int
		expectBody   string
		expectArgs   any
	}{
		{
			name:         "JSON Result Is Embedded",
			method:       "searchSongs",
			body:         `{"query":"Yellow","page":1}`,
			result:       dispatcher.Result{JSON: `[{"title":"Mellow Yellow"}]`},
			expectStatus: http.StatusOK,
			expectBody:   `{"result":[{"title":"Mellow Yellow"}]}`,
			expectArgs:   map[string]any{"query": "Yellow", "page": json.Number("1")},
		},
		{
			name:         "Status Result",
			method:       "authorizationStatus",
			result:       dispatcher.Result{Status: &denied},
			expectStatus: http.StatusOK,
			expectBody:   `{"result":1}`,
			expectArgs:   nil,
		},
		{
			name:         "Bad Call",
			method:       "getAlbum",
			body:         `{}`,
			err:          &domain.CallError{Code: domain.CodeBadCall, Message: "Bad call"},
			expectStatus: http.StatusBadRequest,
			expectBody:   `{"code":"BAD_CALL","message":"Bad call"}`,
			expectArgs:   map[string]any{},
		},
		{
			name:         "Not Found",
			method:       "getAlbum",
			body:         `{"id":"9"}`,
			err:          &domain.CallError{Code: domain.CodeNotFound, Message: "Not found"},
			expectStatus: http.StatusNotFound,
			expectBody:   `{"code":"NOT_FOUND","message":"Not found"}`,
			expectArgs:   map[string]any{"id": "9"},
		},
		{
			name:         "Unauthorized",
			method:       "searchSongs",
			err:          &domain.CallError{Code: domain.CodeUnauthorized, Message: "nope"},
			expectStatus: http.StatusForbidden,
			expectBody:   `{"code":"UNAUTHORIZED","message":"nope"}`,
		},
		{
			name:         "Unavailable",
			method:       "searchSongs",
			err:          &domain.CallError{Code: domain.CodeUnavailable, Message: "gone"},
			expectStatus: http.StatusServiceUnavailable,
			expectBody:   `{"code":"UNAVAILABLE","message":"gone"}`,
		},
		{
			name:         "Plain Error Is Internal",
			method:       "searchSongs",
			err:          errors.New("boom"),
			expectStatus: http.StatusInternalServerError,
			expectBody:   `{"code":"INTERNAL","message":"Internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{result: tt.result, err: tt.err}
			srv := NewServer(zap.NewNop(), caller, "127.0.0.1:0")

			req := httptest.NewRequest(http.MethodPost, "/v1/"+tt.method, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.expectStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectBody, rec.Body.String())
			assert.Equal(t, tt.method, caller.method)
			assert.Equal(t, tt.expectArgs, caller.args)
		})
	}
}

func TestHandleCall_MalformedBody(t *testing.T) {
	for _, body := range []string{`[1,2]`, `{"query":`, `"text"`} {
		caller := &stubCaller{}
		srv := NewServer(zap.NewNop(), caller, "127.0.0.1:0")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/searchSongs", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"code":"BAD_CALL","message":"Bad call"}`, rec.Body.String())
		assert.Empty(t, caller.method, "dispatcher must not be called for %s", body)
	}
}

func TestHandleCall_WrongVerb(t *testing.T) {
	srv := NewServer(zap.NewNop(), &stubCaller{}, "127.0.0.1:0")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/searchSongs", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		state        dispatcher.State
		expectStatus int
	}{
		{dispatcher.StateReady, http.StatusOK},
		{dispatcher.StateUnauthorized, http.StatusOK},
		{dispatcher.StateUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			srv := NewServer(zap.NewNop(), &stubCaller{state: tt.state}, "127.0.0.1:0")

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectStatus, rec.Code)
			assert.JSONEq(t, `{"state":"`+tt.state.String()+`"}`, rec.Body.String())
		})
	}
}

// TestServer_EndToEnd serves a real dispatcher over a real listener
func TestServer_EndToEnd(t *testing.T) {
	store := memory.New(nil)
	store.AddSongs(
		domain.MediaItem{ID: 1, Title: domain.StringPtr("Mellow Yellow"), Artist: domain.StringPtr("Donovan")},
		domain.MediaItem{ID: 2, Title: domain.StringPtr("Blue"), Artist: domain.StringPtr("Joni Mitchell")},
	)
	logger := zap.NewNop()
	d := dispatcher.NewDispatcher(logger, store, nil, projector.NewProjector(logger, nil), dispatcher.Options{})

	srv := NewServer(logger, d, "127.0.0.1:0")
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Post("http://"+srv.Addr()+"/v1/searchSongs", "application/json",
		strings.NewReader(`{"query":"yellow","artistId":null,"limit":10,"page":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result []map[string]any `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Result, 1)
	assert.Equal(t, "Mellow Yellow", out.Result[0]["title"])
}

type stubCaller struct {
	result dispatcher.Result
	err    error
	state  dispatcher.State

	method string
	args   any
}

func (s *stubCaller) Call(ctx context.Context, method string, args any) (dispatcher.Result, error) {
	s.method = method
	s.args = args
	return s.result, s.err
}

func (s *stubCaller) State() dispatcher.State {
	return s.state
}
