package interaction

import (
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"

	"go.uber.org/zap"
)

// State of the interaction controller
type State string

const (
	StateIdle                        State = "idle"
	StateAwaitingConnectionProximity State = "awaiting_connection_proximity"
)

// Store is the part of the graph the controller mutates
type Store interface {
	HasPerson(id string) bool
	Person(id string) (*entities.Person, error)
	Relation(id string) (*entities.Relation, error)
	AddRelation(sourceID, targetID string, proximity valueobjects.Proximity) (*entities.Relation, error)
	SetPersonPosition(id string, position valueobjects.Position) error
}

// PendingConnection is a connect gesture awaiting a proximity choice
type PendingConnection struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// Snapshot is the observable state of a controller
type Snapshot struct {
	State   State              `json:"state"`
	Pending *PendingConnection `json:"pending,omitempty"`
}

// Controller turns render-layer gestures into graph mutations. It holds
// no data besides the pending connection. Not safe for concurrent use.
type Controller struct {
	state   State
	pending *PendingConnection
	logger  *zap.Logger
}

// NewController creates an idle controller
func NewController(logger *zap.Logger) *Controller {
	return &Controller{state: StateIdle, logger: logger}
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{State: c.state}
	if c.pending != nil {
		p := *c.pending
		s.Pending = &p
	}
	return s
}

// State returns the current state
func (c *Controller) State() State {
	return c.state
}

// Connect captures a pending connection. A second connect replaces the pending pair.
func (c *Controller) Connect(store Store, sourceID, targetID string) (Snapshot, error) {
	if !store.HasPerson(sourceID) {
		return c.Snapshot(), pkgerrors.NewReferentialError("source person does not exist")
	}
	if !store.HasPerson(targetID) {
		return c.Snapshot(), pkgerrors.NewReferentialError("target person does not exist")
	}

	if c.pending != nil {
		c.logger.Debug("Replacing pending connection",
			zap.String("sourceID", c.pending.SourceID),
			zap.String("targetID", c.pending.TargetID),
		)
	}
	c.pending = &PendingConnection{SourceID: sourceID, TargetID: targetID}
	c.state = StateAwaitingConnectionProximity

	return c.Snapshot(), nil
}

// ChooseProximity commits the pending connection as a relation.
// An invalid proximity keeps the connection pending; a rejected commit discards it.
func (c *Controller) ChooseProximity(store Store, proximity string) (*entities.Relation, error) {
	if c.state != StateAwaitingConnectionProximity || c.pending == nil {
		return nil, pkgerrors.NewValidationError("no connection is waiting for a proximity").
			WithCode("NO_PENDING_CONNECTION")
	}

	p, err := valueobjects.ParseProximity(proximity)
	if err != nil {
		return nil, err
	}

	pending := *c.pending
	relation, err := store.AddRelation(pending.SourceID, pending.TargetID, p)
	c.reset()
	if err != nil {
		c.logger.Debug("Pending connection rejected", zap.Error(err))
		return nil, err
	}

	return relation, nil
}

// Cancel discards the pending connection
func (c *Controller) Cancel() Snapshot {
	c.reset()
	return c.Snapshot()
}

// Forget discards the pending connection if it names personID
func (c *Controller) Forget(personID string) {
	if c.pending != nil && (c.pending.SourceID == personID || c.pending.TargetID == personID) {
		c.reset()
	}
}

// NodeClicked returns the person an edit view binds to
func (c *Controller) NodeClicked(store Store, personID string) (*entities.Person, error) {
	return store.Person(personID)
}

// EdgeClicked returns the relation an edit view binds to
func (c *Controller) EdgeClicked(store Store, relationID string) (*entities.Relation, error) {
	return store.Relation(relationID)
}

// NodeDragEnded stores the final position of a dragged person
func (c *Controller) NodeDragEnded(store Store, personID string, x, y float64) error {
	position, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return err
	}
	return store.SetPersonPosition(personID, position)
}

func (c *Controller) reset() {
	c.pending = nil
	c.state = StateIdle
}
