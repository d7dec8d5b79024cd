package entities

import (
	"time"

	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"
)

// Relation is a directed edge between two persons
type Relation struct {
	id        string
	ownerID   string
	sourceID  string
	targetID  string
	proximity valueobjects.Proximity
	createdAt time.Time
	updatedAt time.Time
}

// NewRelation creates a relation. Endpoint existence is checked by the graph.
func NewRelation(id, ownerID, sourceID, targetID string, proximity valueobjects.Proximity) (*Relation, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("relation id cannot be empty")
	}
	if sourceID == "" || targetID == "" {
		return nil, pkgerrors.NewReferentialError("relation endpoints are required")
	}
	if !proximity.IsValid() {
		return nil, pkgerrors.NewValidationError("proximity must be one of: fort, moyen, faible")
	}

	now := time.Now().UTC()
	return &Relation{
		id:        id,
		ownerID:   ownerID,
		sourceID:  sourceID,
		targetID:  targetID,
		proximity: proximity,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructRelation rebuilds a relation from stored or imported data
func ReconstructRelation(
	id, ownerID, sourceID, targetID string,
	proximity valueobjects.Proximity,
	createdAt, updatedAt time.Time,
) (*Relation, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("relation id cannot be empty")
	}
	if !proximity.IsValid() {
		proximity = valueobjects.DefaultProximity
	}
	return &Relation{
		id:        id,
		ownerID:   ownerID,
		sourceID:  sourceID,
		targetID:  targetID,
		proximity: proximity,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// SetProximity changes the closeness level
func (r *Relation) SetProximity(proximity valueobjects.Proximity) error {
	if !proximity.IsValid() {
		return pkgerrors.NewValidationError("proximity must be one of: fort, moyen, faible")
	}
	r.proximity = proximity
	r.updatedAt = time.Now().UTC()
	return nil
}

// Touches reports whether personID is one of the endpoints
func (r *Relation) Touches(personID string) bool {
	return r.sourceID == personID || r.targetID == personID
}

// IsSelfLoop reports whether both endpoints are the same person
func (r *Relation) IsSelfLoop() bool {
	return r.sourceID == r.targetID
}

// Clone returns an independent copy
func (r *Relation) Clone() *Relation {
	c := *r
	return &c
}

func (r *Relation) ID() string                        { return r.id }
func (r *Relation) OwnerID() string                   { return r.ownerID }
func (r *Relation) SourceID() string                  { return r.sourceID }
func (r *Relation) TargetID() string                  { return r.targetID }
func (r *Relation) Proximity() valueobjects.Proximity { return r.proximity }
func (r *Relation) CreatedAt() time.Time              { return r.createdAt }
func (r *Relation) UpdatedAt() time.Time              { return r.updatedAt }
