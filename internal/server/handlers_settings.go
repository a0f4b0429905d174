package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/settings"
	"amneziawg-webui/internal/util"
)

type settingsPayload struct {
	ListenInterface      string `json:"listenInterface"`
	DebugLogEnabled      *bool  `json:"debugLogEnabled"`
	DebugLogLevel        string `json:"debugLogLevel"`
	RevisionHistoryLimit int    `json:"revisionHistoryLimit"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	interfaces, err := util.InterfacesWithAddrs()
	if err != nil {
		interfaces = nil
	}
	// Auth fields never leave the process.
	safe := settingsPayload{
		ListenInterface:      current.ListenInterface,
		DebugLogEnabled:      current.DebugLogEnabled,
		DebugLogLevel:        current.DebugLogLevel,
		RevisionHistoryLimit: current.HistoryLimit(),
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settings":   safe,
		"interfaces": interfaces,
	})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.RevisionHistoryLimit < 0 {
		writeError(w, http.StatusBadRequest, "revisionHistoryLimit must not be negative")
		return
	}

	var updated settings.Settings
	err := s.settings.Update(func(current *settings.Settings) error {
		current.ListenInterface = strings.TrimSpace(payload.ListenInterface)
		current.RevisionHistoryLimit = payload.RevisionHistoryLimit
		if payload.DebugLogEnabled != nil {
			current.DebugLogEnabled = payload.DebugLogEnabled
		}
		if payload.DebugLogLevel != "" {
			current.DebugLogLevel = strings.ToLower(strings.TrimSpace(payload.DebugLogLevel))
		}
		updated = *current
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.diagLog != nil {
		if err := s.diagLog.Configure(updated.DebugLog(), updated.DebugLogLevel); err != nil {
			logs.Logger.Warnf("diagnostics logging configure warning: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
