package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"amneziawg-webui/internal/collect"
	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/repository"
	"amneziawg-webui/internal/serialize"
	"amneziawg-webui/internal/store"
	"amneziawg-webui/internal/tunnel"
)

var errBadSaveBody = errors.New("invalid save body")

type saveResponse struct {
	OK       bool     `json:"ok"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
	Revision string   `json:"revision,omitempty"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	section, err := tunnel.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, saveResponse{Error: err.Error()})
		return
	}

	incoming, err := s.decodeSaveBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, saveResponse{Error: err.Error()})
		return
	}

	rev, err := s.repo.Save(r.Context(), section, incoming, finalizeDocument)
	if err != nil {
		logs.Logger.Errorf("save %s failed: %v", section, err)
		writeJSON(w, http.StatusInternalServerError, saveResponse{Error: err.Error()})
		return
	}
	s.diagLog.Infof("saved section %s as revision %s with %d warnings", section, rev.ID, len(rev.Warnings))
	s.publishRevision(rev)
	writeJSON(w, http.StatusOK, saveResponse{OK: true, Warnings: rev.Warnings, Revision: rev.ID})
}

// decodeSaveBody accepts the full JSON document, or a form post carrying
// dotted scalar paths and table rows ("peers.0.name=...").
func (s *Server) decodeSaveBody(r *http.Request) (tunnel.Config, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		return s.decodeFormSave(r)
	default:
		return decodeJSONSave(r)
	}
}

func decodeJSONSave(r *http.Request) (tunnel.Config, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return tunnel.Config{}, fmt.Errorf("%w: %v", errBadSaveBody, err)
	}
	doc, err := tunnel.DecodeDocument(body)
	if err != nil || doc == nil {
		return tunnel.Config{}, fmt.Errorf("%w: body must be a JSON object", errBadSaveBody)
	}
	st := store.New()
	st.MergeLoaded(doc)
	cfg := st.Snapshot()
	// Policy rows pass the same acceptance rules as a form post.
	cfg.Policy = collect.NewPolicyCollector(form.FromConfig(cfg)).Collect()
	return cfg, nil
}

// decodeFormSave runs a form post through the same store, collector and
// serializer pipeline the editor uses. Scalars not present in the form keep
// their stored values, keys naming no field are skipped, and the last value
// of a repeated key wins (hidden "off" input followed by a checkbox).
func (s *Server) decodeFormSave(r *http.Request) (tunnel.Config, error) {
	if err := r.ParseForm(); err != nil {
		return tunnel.Config{}, fmt.Errorf("%w: %v", errBadSaveBody, err)
	}

	base, err := s.repo.Load(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		base = tunnel.Defaults()
	} else if err != nil {
		return tunnel.Config{}, err
	}
	st := store.NewFrom(base)

	keys := make([]string, 0, len(r.PostForm))
	for key := range r.PostForm {
		if !form.IsRowKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := r.PostForm[key]
		err := st.Set(key, values[len(values)-1])
		if errors.Is(err, store.ErrUnknownPath) {
			s.diagLog.Debugf("form save: skipping unknown field %q", key)
			continue
		}
		if err != nil {
			return tunnel.Config{}, fmt.Errorf("%w: %s: %v", errBadSaveBody, key, err)
		}
	}

	rows := form.FromValues(r.PostForm)
	return serialize.New(st, collect.NewPeerCollector(rows), collect.NewPolicyCollector(rows)).Serialize(), nil
}
