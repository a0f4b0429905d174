package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"amneziawg-webui/internal/keys"
	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/repository"
	"amneziawg-webui/internal/tunnel"
	"amneziawg-webui/internal/version"
	"amneziawg-webui/internal/vpn"
)

const noConfigMessage = "no configuration stored"

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.repo.Load(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, noConfigMessage)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleRenderConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.repo.Load(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, noConfigMessage)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	text, err := vpn.RenderConfig(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+cfg.Interface.Name+`.conf"`)
	_, _ = io.WriteString(w, text)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, saveResponse{Error: "unable to read body"})
		return
	}
	imported, err := vpn.ParseConfig(string(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, saveResponse{Error: err.Error()})
		return
	}
	rev, err := s.repo.Import(r.Context(), imported, finalizeDocument)
	if err != nil {
		logs.Logger.Errorf("import failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, saveResponse{Error: err.Error()})
		return
	}
	s.diagLog.Infof("imported awg-quick config as revision %s (%d peers)", rev.ID, len(imported.Peers))
	s.publishRevision(rev)
	writeJSON(w, http.StatusOK, saveResponse{OK: true, Warnings: rev.Warnings, Revision: rev.ID})
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit == 0 && s.settings != nil {
		if current, err := s.settings.Get(); err == nil {
			limit = current.HistoryLimit()
		}
	}
	revisions, err := s.repo.Revisions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
}

func (s *Server) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	rev, err := s.repo.Revision(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "revision not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

// finalizeDocument derives the interface public key and collects warnings.
func finalizeDocument(cfg *tunnel.Config) []string {
	cfg.Interface.PublicKey = ""
	if pub, err := keys.PublicKey(cfg.Interface.PrivateKey); err == nil {
		cfg.Interface.PublicKey = pub
	}
	return vpn.Check(*cfg)
}
