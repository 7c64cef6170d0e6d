package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"carspire/internal/domain"
	"carspire/internal/usecase"
)

type learnRequest struct {
	Text string `json:"text"`
}

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
	TopK     *int             `json:"topK"`
}

type healthResponse struct {
	OK    bool      `json:"ok"`
	Model string    `json:"model"`
	Time  time.Time `json:"time"`
}

type providerErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true, Model: s.model, Time: s.now().UTC()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.learn.Learn(r.Context(), req.Text)
	if err != nil {
		s.respondFailure(w, r, "learn", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Messages == nil {
		s.respondError(w, http.StatusBadRequest, "messages array required")
		return
	}

	topK := s.retrieve.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if s.retrieve.MaxTopK > 0 {
		topK = min(topK, s.retrieve.MaxTopK)
	}

	res, err := s.chat.Chat(r.Context(), usecase.ChatRequest{Messages: req.Messages, TopK: topK})
	if err != nil {
		s.respondFailure(w, r, "chat", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// decode reads a JSON body bounded by the configured size limit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if s.config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondFailure maps the error taxonomy to HTTP responses.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		s.respondError(w, http.StatusBadRequest, validation.Error())
		return
	}

	fields := []zap.Field{zap.String("op", op), zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err)}

	var provider *domain.ProviderError
	if errors.As(err, &provider) {
		status := provider.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		detail := provider.Detail
		if detail == "" {
			detail = err.Error()
		}
		s.logger.Error("provider request failed", append(fields, zap.Int("status", status))...)
		s.respondJSON(w, status, providerErrorResponse{
			Error:  "AI_REQUEST_FAILED",
			Status: status,
			Detail: detail,
		})
		return
	}

	s.logger.Error("request failed", fields...)
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
