package handlers

import (
	"net/http"

	"relmap/application/queries"
	"relmap/pkg/common"
	pkgerrors "relmap/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InteractionHandler forwards render-layer gestures to the session's controller
type InteractionHandler struct {
	base
}

// NewInteractionHandler creates a new interaction handler
func NewInteractionHandler(sessions Sessions, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *InteractionHandler {
	return &InteractionHandler{base: newBase(sessions, errorHandler, logger)}
}

// ConnectRequest is the body of POST /interaction/connect
type ConnectRequest struct {
	SourceID string `json:"sourceId" validate:"required"`
	TargetID string `json:"targetId" validate:"required"`
}

// ProximityChoiceRequest is the body of POST /interaction/proximity.
// The literal is validated by the controller, which stays pending on a bad choice.
type ProximityChoiceRequest struct {
	Proximity string `json:"proximity"`
}

// DragRequest is the body of POST /interaction/nodes/{id}/drag
type DragRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// State handles GET /interaction
func (h *InteractionHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, r, http.StatusOK, s.InteractionState())
}

// Connect handles POST /interaction/connect
func (h *InteractionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snapshot, err := s.Connect(req.SourceID, req.TargetID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, snapshot)
}

// ChooseProximity handles POST /interaction/proximity
func (h *InteractionHandler) ChooseProximity(w http.ResponseWriter, r *http.Request) {
	var req ProximityChoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	relation, err := s.ChooseProximity(req.Proximity)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusCreated, queries.ToGraphEdge(relation))
}

// Cancel handles POST /interaction/cancel
func (h *InteractionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, r, http.StatusOK, s.CancelConnection())
}

// NodeClicked handles POST /interaction/nodes/{personID}/click
func (h *InteractionHandler) NodeClicked(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	person, err := s.NodeClicked(chi.URLParam(r, "personID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, queries.ToGraphNode(person))
}

// EdgeClicked handles POST /interaction/edges/{relationID}/click
func (h *InteractionHandler) EdgeClicked(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	relation, err := s.EdgeClicked(chi.URLParam(r, "relationID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, queries.ToGraphEdge(relation))
}

// NodeDragEnded handles POST /interaction/nodes/{personID}/drag
func (h *InteractionHandler) NodeDragEnded(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.NodeDragEnded(chi.URLParam(r, "personID"), *req.X, *req.Y); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
