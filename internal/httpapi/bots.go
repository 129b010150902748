package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nextlevelbuilder/turnero/internal/bots"
)

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	all, err := s.bots.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list bots")
		return
	}
	if all == nil {
		all = []*bots.Bot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": all})
}

func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	bot, err := s.bots.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, bots.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": bot})
}

func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	var bot bots.Bot
	if err := json.NewDecoder(r.Body).Decode(&bot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot payload")
		return
	}
	if bot.Name == "" || bot.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "name and phone_number are required")
		return
	}
	if err := s.bots.Put(r.Context(), &bot); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store bot")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": bot})
}

func (s *Server) handleUpdateBot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	current, err := s.bots.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, bots.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load bot")
		return
	}

	// Decode over the current record so omitted fields keep their values.
	updated := *current
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot payload")
		return
	}
	updated.ID = id
	if err := s.bots.Put(r.Context(), &updated); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": updated})
}

func (s *Server) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	if err := s.bots.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, bots.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete bot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
