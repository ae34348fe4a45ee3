package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/models"
)

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", common.ErrValidation, err)
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeBody(r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.users.Register(r.Context(), creds.Username, creds.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeBody(r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.users.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req models.PullRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.sync.Pull(r.Context(), ownerFrom(r.Context()), int64(req.LastPulledAt))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req models.PushRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.sync.Push(r.Context(), ownerFrom(r.Context()), &req.Changes)
	if err != nil {
		if errors.Is(err, common.ErrBatchTooLarge) {
			writeJSON(w, http.StatusBadRequest, models.PushResponse{OK: false, Error: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}

	resp := models.PushResponse{OK: true}
	if s.cfg.AckApplied {
		resp.Applied = report
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	payload, err := s.keys.Get(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	var payload models.KeyPayload
	if err := decodeBody(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.keys.Put(r.Context(), ownerFrom(r.Context()), &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
