package events

import (
	"time"

	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// Event type names, also used as EventBridge detail types
const (
	TypePersonAdded     = "person.added"
	TypePersonUpdated   = "person.updated"
	TypePersonMoved     = "person.moved"
	TypePersonDeleted   = "person.deleted"
	TypeRelationAdded   = "relation.added"
	TypeRelationUpdated = "relation.updated"
	TypeRelationDeleted = "relation.deleted"
	TypeGraphReplaced   = "graph.replaced"
	TypeGraphCleared    = "graph.cleared"
)

// BaseEvent provides common event fields. AggregateID is the map owner.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(ownerID, eventType string, version int) BaseEvent {
	return BaseEvent{
		AggregateID: ownerID,
		EventType:   eventType,
		Timestamp:   time.Now().UTC(),
		Version:     version,
	}
}

// Person Events

// PersonAdded is raised when a person is created. Person is a snapshot.
type PersonAdded struct {
	BaseEvent
	Person *entities.Person `json:"-"`
}

func NewPersonAdded(ownerID string, person *entities.Person, version int) PersonAdded {
	return PersonAdded{BaseEvent: newBase(ownerID, TypePersonAdded, version), Person: person.Clone()}
}

// PersonUpdated is raised when the editable fields of a person are replaced
type PersonUpdated struct {
	BaseEvent
	Person *entities.Person `json:"-"`
}

func NewPersonUpdated(ownerID string, person *entities.Person, version int) PersonUpdated {
	return PersonUpdated{BaseEvent: newBase(ownerID, TypePersonUpdated, version), Person: person.Clone()}
}

// PersonMoved is raised when a person is placed or dragged
type PersonMoved struct {
	BaseEvent
	PersonID string                `json:"person_id"`
	Position valueobjects.Position `json:"position"`
}

func NewPersonMoved(ownerID, personID string, position valueobjects.Position, version int) PersonMoved {
	return PersonMoved{
		BaseEvent: newBase(ownerID, TypePersonMoved, version),
		PersonID:  personID,
		Position:  position,
	}
}

// PersonDeleted is raised when a person and its relations are removed
type PersonDeleted struct {
	BaseEvent
	PersonID    string   `json:"person_id"`
	RelationIDs []string `json:"relation_ids"`
}

func NewPersonDeleted(ownerID, personID string, relationIDs []string, version int) PersonDeleted {
	return PersonDeleted{
		BaseEvent:   newBase(ownerID, TypePersonDeleted, version),
		PersonID:    personID,
		RelationIDs: relationIDs,
	}
}

// Relation Events

// RelationAdded is raised when two persons are connected
type RelationAdded struct {
	BaseEvent
	Relation *entities.Relation `json:"-"`
}

func NewRelationAdded(ownerID string, relation *entities.Relation, version int) RelationAdded {
	return RelationAdded{BaseEvent: newBase(ownerID, TypeRelationAdded, version), Relation: relation.Clone()}
}

// RelationUpdated is raised when a relation proximity changes
type RelationUpdated struct {
	BaseEvent
	RelationID string                 `json:"relation_id"`
	Proximity  valueobjects.Proximity `json:"proximity"`
}

func NewRelationUpdated(ownerID, relationID string, proximity valueobjects.Proximity, version int) RelationUpdated {
	return RelationUpdated{
		BaseEvent:  newBase(ownerID, TypeRelationUpdated, version),
		RelationID: relationID,
		Proximity:  proximity,
	}
}

// RelationDeleted is raised when a relation is removed explicitly
type RelationDeleted struct {
	BaseEvent
	RelationID string `json:"relation_id"`
}

func NewRelationDeleted(ownerID, relationID string, version int) RelationDeleted {
	return RelationDeleted{BaseEvent: newBase(ownerID, TypeRelationDeleted, version), RelationID: relationID}
}

// Graph Events

// GraphReplaced is raised when the whole map is swapped, as on import.
// The previous ids let the store remove rows the new content no longer has.
type GraphReplaced struct {
	BaseEvent
	Persons             []*entities.Person   `json:"-"`
	Relations           []*entities.Relation `json:"-"`
	PreviousPersonIDs   []string             `json:"previous_person_ids"`
	PreviousRelationIDs []string             `json:"previous_relation_ids"`
}

func NewGraphReplaced(
	ownerID string,
	persons []*entities.Person,
	relations []*entities.Relation,
	previousPersonIDs, previousRelationIDs []string,
	version int,
) GraphReplaced {
	return GraphReplaced{
		BaseEvent:           newBase(ownerID, TypeGraphReplaced, version),
		Persons:             persons,
		Relations:           relations,
		PreviousPersonIDs:   previousPersonIDs,
		PreviousRelationIDs: previousRelationIDs,
	}
}

// GraphCleared is raised on reset
type GraphCleared struct {
	BaseEvent
	PersonIDs   []string `json:"person_ids"`
	RelationIDs []string `json:"relation_ids"`
}

func NewGraphCleared(ownerID string, personIDs, relationIDs []string, version int) GraphCleared {
	return GraphCleared{
		BaseEvent:   newBase(ownerID, TypeGraphCleared, version),
		PersonIDs:   personIDs,
		RelationIDs: relationIDs,
	}
}
