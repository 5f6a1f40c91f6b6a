package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cohortaudit/internal/api"
	"cohortaudit/internal/logging"
	"cohortaudit/internal/sandbox"
	"cohortaudit/internal/services"
)

const maxSandboxBody = 1 << 20

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	params, err := api.ApplyQuery(s.service.Defaults(), r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.pool.analyze(r.Context(), api.Key(params), s.requestTimeout,
		func(ctx context.Context) (*api.AnalyticsResponse, error) {
			return s.service.Analyze(ctx, params)
		})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	resp, err := s.service.Lab(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSandbox(w http.ResponseWriter, r *http.Request) {
	if !s.sandboxEnabled {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "sandbox is disabled", Kind: services.KindInvalidParameter})
		return
	}
	var req sandbox.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSandboxBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInvalidParameter, "sandbox", "body", "malformed JSON request", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	ctx = services.WithStage(ctx, "sandbox")
	var resp sandbox.Response
	err := s.pool.run(ctx, func() error {
		var err error
		resp, err = s.runner.Run(ctx, req)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		OK:           true,
		LockFilePath: s.lockPath,
		Workers:      s.pool.size,
		Sandbox:      s.sandboxEnabled,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError converts err into the structured failure object. Context
// expiry is reported as a timeout rather than an internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := api.NewErrorResponse(err)
	status := api.StatusFor(resp.Kind)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request error",
			logging.String("kind", resp.Kind),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, resp)
}
