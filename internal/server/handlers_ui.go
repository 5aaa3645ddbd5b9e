package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/uistate"
)

func (h *Handlers) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if h.store == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "UI state persistence is disabled")
		return false
	}
	return true
}

// HandleUIState handles GET /v1/ui/state.
func (h *Handlers) HandleUIState(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	st, err := h.store.State(r.Context())
	if err != nil {
		h.logger.Error("ui state: load", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load UI state")
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("entry_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "entry_id must be a UUID")
		return "", false
	}
	return id.String(), true
}

type expandedResponse struct {
	EntryID  string `json:"entry_id"`
	Expanded bool   `json:"expanded"`
}

// HandleExpand handles PUT /v1/ui/expanded/{entry_id}.
func (h *Handlers) HandleExpand(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if err := h.store.SetExpanded(r.Context(), id); err != nil {
		h.logger.Error("ui state: expand", "error", err, "entry_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to save UI state")
		return
	}
	writeJSON(w, r, http.StatusOK, expandedResponse{EntryID: id, Expanded: true})
}

// HandleCollapse handles DELETE /v1/ui/expanded/{entry_id}.
func (h *Handlers) HandleCollapse(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if err := h.store.ClearExpanded(r.Context(), id); err != nil {
		if errors.Is(err, uistate.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "entry is not expanded")
			return
		}
		h.logger.Error("ui state: collapse", "error", err, "entry_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to save UI state")
		return
	}
	writeJSON(w, r, http.StatusOK, expandedResponse{EntryID: id, Expanded: false})
}
