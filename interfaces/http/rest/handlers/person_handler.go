package handlers

import (
	"net/http"

	"relmap/application/queries"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	"relmap/pkg/common"
	pkgerrors "relmap/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PersonHandler handles person-related HTTP requests
type PersonHandler struct {
	base
}

// NewPersonHandler creates a new person handler
func NewPersonHandler(sessions Sessions, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *PersonHandler {
	return &PersonHandler{base: newBase(sessions, errorHandler, logger)}
}

// PersonRequest is the body of POST and PUT /persons. An empty proximity means moyen.
type PersonRequest struct {
	FirstName  string   `json:"firstName" validate:"required,max=200"`
	LastName   string   `json:"lastName" validate:"required,max=200"`
	Company    string   `json:"company,omitempty" validate:"max=200"`
	Comment    string   `json:"comment,omitempty" validate:"max=5000"`
	Proximity  string   `json:"proximity,omitempty" validate:"omitempty,proximity"`
	Categories []string `json:"categories,omitempty" validate:"omitempty,max=5,dive,category"`
}

// PositionRequest is the body of PUT /persons/{id}/position
type PositionRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// DeletePersonResponse lists what a person deletion removed
type DeletePersonResponse struct {
	ID                 string   `json:"id"`
	RemovedRelationIDs []string `json:"removedRelationIds"`
}

func (req PersonRequest) toData() (entities.PersonData, error) {
	categories, err := valueobjects.NewCategorySet(req.Categories...)
	if err != nil {
		return entities.PersonData{}, err
	}
	return entities.PersonData{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Company:    req.Company,
		Comment:    req.Comment,
		Proximity:  valueobjects.ProximityOrDefault(req.Proximity),
		Categories: categories,
	}, nil
}

// CreatePerson handles POST /persons
func (h *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if !h.decode(w, r, &req) {
		return
	}
	data, err := req.toData()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	person, err := s.AddPerson(data)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Debug("Person created", zap.String("personID", person.ID()), zap.String("userID", s.OwnerID()))
	common.RespondJSON(w, r, http.StatusCreated, queries.ToGraphNode(person))
}

// GetPerson handles GET /persons/{personID}
func (h *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	person, err := s.Person(chi.URLParam(r, "personID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, queries.ToGraphNode(person))
}

// UpdatePerson handles PUT /persons/{personID}. The body replaces every editable field.
func (h *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if !h.decode(w, r, &req) {
		return
	}
	data, err := req.toData()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	person, err := s.UpdatePerson(chi.URLParam(r, "personID"), data)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, queries.ToGraphNode(person))
}

// DeletePerson handles DELETE /persons/{personID}
func (h *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	personID := chi.URLParam(r, "personID")
	removed, err := s.DeletePerson(personID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	common.RespondJSON(w, r, http.StatusOK, DeletePersonResponse{ID: personID, RemovedRelationIDs: removed})
}

// MovePerson handles PUT /persons/{personID}/position
func (h *PersonHandler) MovePerson(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !h.decode(w, r, &req) {
		return
	}
	position, err := valueobjects.NewPosition(*req.X, *req.Y)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SetPersonPosition(chi.URLParam(r, "personID"), position); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
