// Package httpapi serves the dispatcher over HTTP for callers without D-Bus.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/genricoloni/medialib/internal/dispatcher"
	"github.com/genricoloni/medialib/internal/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const _maxBodySize = 1 << 20

// Caller runs a single method against the media library
type Caller interface {
	Call(ctx context.Context, method string, args any) (dispatcher.Result, error)
	State() dispatcher.State
}

// Server is the HTTP front of the dispatcher
type Server struct {
	logger *zap.Logger
	caller Caller
	srv    *http.Server
	addr   string
}

type callResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer creates a server listening on addr once started
func NewServer(logger *zap.Logger, caller Caller, addr string) *Server {
	s := &Server{logger: logger, caller: caller, addr: addr}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/v1/{method}", s.handleCall).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return router
}

// Start binds the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.addr = ln.Addr().String()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server started", zap.String("addr", s.addr))
	return nil
}

// Addr returns the bound address; valid after Start
func (s *Server) Addr() string {
	return s.addr
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	method := mux.Vars(r)["method"]

	args, err := readArgs(r)
	if err != nil {
		s.logger.Debug("Rejected request body", zap.String("method", method), zap.Error(err))
		writeError(w, domain.ToCallError(fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)))
		return
	}

	res, err := s.caller.Call(r.Context(), method, args)
	if err != nil {
		writeError(w, domain.ToCallError(err))
		return
	}

	var raw json.RawMessage
	if res.Status != nil {
		raw = json.RawMessage(fmt.Sprintf("%d", *res.Status))
	} else {
		raw = json.RawMessage(res.JSON)
	}
	writeJSON(w, http.StatusOK, callResponse{Result: raw})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.caller.State()
	status := http.StatusOK
	if state == dispatcher.StateUnavailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"state": state.String()})
}

// readArgs decodes the body into an argument bag; an empty body means no
// arguments. Numbers are kept as json.Number.
func readArgs(r *http.Request) (any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, _maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}
	return args, nil
}

func statusFor(code string) int {
	switch code {
	case domain.CodeBadCall:
		return http.StatusBadRequest
	case domain.CodeNotFound, domain.CodeNotImplemented:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, ce *domain.CallError) {
	writeJSON(w, statusFor(ce.Code), errorResponse{Code: ce.Code, Message: ce.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
