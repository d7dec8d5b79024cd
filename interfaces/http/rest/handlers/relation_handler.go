package handlers

import (
	"net/http"

	"relmap/application/queries"
	"relmap/domain/core/valueobjects"
	"relmap/pkg/common"
	pkgerrors "relmap/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RelationHandler handles relation-related HTTP requests
type RelationHandler struct {
	base
}

// NewRelationHandler creates a new relation handler
func NewRelationHandler(sessions Sessions, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *RelationHandler {
	return &RelationHandler{base: newBase(sessions, errorHandler, logger)}
}

// CreateRelationRequest is the body of POST /relations
type CreateRelationRequest struct {
	SourceID  string `json:"sourceId" validate:"required"`
	TargetID  string `json:"targetId" validate:"required"`
	Proximity string `json:"proximity" validate:"required,proximity"`
}

// UpdateRelationRequest is the body of PATCH /relations/{id}
type UpdateRelationRequest struct {
	Proximity string `json:"proximity" validate:"required,proximity"`
}

// CreateRelation handles POST /relations
func (h *RelationHandler) CreateRelation(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationRequest
	if !h.decode(w, r, &req) {
		return
	}
	proximity, err := valueobjects.ParseProximity(req.Proximity)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	relation, err := s.AddRelation(req.SourceID, req.TargetID, proximity)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusCreated, queries.ToGraphEdge(relation))
}

// GetRelation handles GET /relations/{relationID}
func (h *RelationHandler) GetRelation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	relation, err := s.Relation(chi.URLParam(r, "relationID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, queries.ToGraphEdge(relation))
}

// UpdateRelation handles PATCH /relations/{relationID}
func (h *RelationHandler) UpdateRelation(w http.ResponseWriter, r *http.Request) {
	var req UpdateRelationRequest
	if !h.decode(w, r, &req) {
		return
	}
	proximity, err := valueobjects.ParseProximity(req.Proximity)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	relation, err := s.UpdateRelationProximity(chi.URLParam(r, "relationID"), proximity)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, queries.ToGraphEdge(relation))
}

// DeleteRelation handles DELETE /relations/{relationID}
func (h *RelationHandler) DeleteRelation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DeleteRelation(chi.URLParam(r, "relationID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
