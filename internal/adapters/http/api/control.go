package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ControlHandler accepts the host-side inputs: the combat flag and metric toggles.
type ControlHandler struct {
	deps   Dependencies
	combat CombatSetter
}

// NewControlHandler creates a new control handler.
func NewControlHandler(deps Dependencies, combat CombatSetter) *ControlHandler {
	return &ControlHandler{deps: deps, combat: combat}
}

type combatRequest struct {
	InCombat *bool `json:"in_combat"`
}

type combatResponse struct {
	InCombat bool `json:"in_combat"`
}

type toggleResponse struct {
	Metric string `json:"metric"`
	Text   string `json:"text"`
}

// HandleCombat handles POST /combat. GET returns the stored flag.
func (h *ControlHandler) HandleCombat(w http.ResponseWriter, r *http.Request) {
	const op = "api.combat"
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, combatResponse{InCombat: h.combat.InCombat()})
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", wrapKind(op, ErrMethodNotAllowed, nil))
		return
	}

	var req combatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.InCombat == nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errors.New("missing in_combat")))
		return
	}
	h.combat.Set(*req.InCombat)
	writeJSON(w, http.StatusAccepted, combatResponse{InCombat: *req.InCombat})
}

// HandleToggle handles POST /toggle.
func (h *ControlHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", wrapKind(op, ErrMethodNotAllowed, nil))
		return
	}
	h.deps.ToggleMetric(r.Context())
	st := h.deps.Snapshot()
	writeJSON(w, http.StatusOK, toggleResponse{Metric: st.Metric, Text: st.Text})
}
