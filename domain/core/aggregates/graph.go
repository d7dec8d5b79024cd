package aggregates

import (
	"fmt"
	"time"

	"relmap/domain/config"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	"relmap/domain/events"
	pkgerrors "relmap/pkg/errors"
)

// Graph is the aggregate root for one owner's relationship map.
// It is the only place persons and relations are mutated and it keeps
// every relation endpoint pointing at an existing person.
// Graph is not safe for concurrent use; callers serialize access.
type Graph struct {
	ownerID string
	config  *config.DomainConfig
	ids     valueobjects.IDGenerator

	persons     map[string]*entities.Person
	personOrder []string

	relations     map[string]*entities.Relation
	relationOrder []string

	updatedAt time.Time
	version   int
	events    []events.DomainEvent
}

// ReplaceResult describes what ReplaceAll or Load had to discard
type ReplaceResult struct {
	DroppedRelationIDs   []string
	DuplicatePersonIDs   []string
	DuplicateRelationIDs []string
}

// NewGraph creates an empty graph for ownerID
func NewGraph(ownerID string, ids valueobjects.IDGenerator, cfg *config.DomainConfig) (*Graph, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewAuthRequiredError("")
	}
	if ids == nil {
		ids = valueobjects.NewUUIDGenerator()
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	return &Graph{
		ownerID:   ownerID,
		config:    cfg,
		ids:       ids,
		persons:   make(map[string]*entities.Person),
		relations: make(map[string]*entities.Relation),
		updatedAt: time.Now().UTC(),
		events:    []events.DomainEvent{},
	}, nil
}

// OwnerID returns the owner's ID
func (g *Graph) OwnerID() string {
	return g.ownerID
}

// Version increases with every mutation
func (g *Graph) Version() int {
	return g.version
}

// UpdatedAt returns when the graph was last mutated
func (g *Graph) UpdatedAt() time.Time {
	return g.updatedAt
}

// PersonCount returns the number of persons
func (g *Graph) PersonCount() int {
	return len(g.persons)
}

// RelationCount returns the number of relations
func (g *Graph) RelationCount() int {
	return len(g.relations)
}

// HasPerson checks if a person exists without error
func (g *Graph) HasPerson(id string) bool {
	_, exists := g.persons[id]
	return exists
}

// Person returns a copy of the person with id
func (g *Graph) Person(id string) (*entities.Person, error) {
	person, exists := g.persons[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("person")
	}
	// Return a copy to maintain encapsulation
	return person.Clone(), nil
}

// Relation returns a copy of the relation with id
func (g *Graph) Relation(id string) (*entities.Relation, error) {
	relation, exists := g.relations[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("relation")
	}
	return relation.Clone(), nil
}

// Persons returns copies of all persons in insertion order
func (g *Graph) Persons() []*entities.Person {
	persons := make([]*entities.Person, 0, len(g.personOrder))
	for _, id := range g.personOrder {
		persons = append(persons, g.persons[id].Clone())
	}
	return persons
}

// Relations returns copies of all relations in insertion order
func (g *Graph) Relations() []*entities.Relation {
	relations := make([]*entities.Relation, 0, len(g.relationOrder))
	for _, id := range g.relationOrder {
		relations = append(relations, g.relations[id].Clone())
	}
	return relations
}

// RelationsOf returns copies of the relations touching personID
func (g *Graph) RelationsOf(personID string) []*entities.Relation {
	var relations []*entities.Relation
	for _, id := range g.relationOrder {
		if relation := g.relations[id]; relation.Touches(personID) {
			relations = append(relations, relation.Clone())
		}
	}
	return relations
}

// AddPerson assigns an id and appends a new person. Duplicate names are allowed.
func (g *Graph) AddPerson(data entities.PersonData) (*entities.Person, error) {
	// Check person limit (business rule)
	if len(g.persons) >= g.config.MaxPersons {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("maximum of %d persons reached", g.config.MaxPersons))
	}

	id, err := g.newID(g.config.PersonIDPrefix, func(id string) bool { _, ok := g.persons[id]; return ok })
	if err != nil {
		return nil, err
	}

	// Create the person
	person, err := entities.NewPerson(id, g.ownerID, data, g.config)
	if err != nil {
		return nil, err
	}

	g.persons[id] = person
	g.personOrder = append(g.personOrder, id)
	g.touch()
	g.addEvent(events.NewPersonAdded(g.ownerID, person, g.version))

	return person.Clone(), nil
}

// UpdatePerson replaces all editable fields of the person with id
func (g *Graph) UpdatePerson(id string, data entities.PersonData) (*entities.Person, error) {
	person, exists := g.persons[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("person")
	}

	// Validate on a copy so a rejected update leaves the person untouched
	updated := person.Clone()
	if err := updated.Update(data, g.config); err != nil {
		return nil, err
	}

	g.persons[id] = updated
	g.touch()
	g.addEvent(events.NewPersonUpdated(g.ownerID, updated, g.version))

	return updated.Clone(), nil
}

// SetPersonPosition updates only the position of the person with id
func (g *Graph) SetPersonPosition(id string, position valueobjects.Position) error {
	person, exists := g.persons[id]
	if !exists {
		return pkgerrors.NewNotFoundError("person")
	}
	if _, err := valueobjects.NewPosition(position.X, position.Y); err != nil {
		return err
	}

	person.MoveTo(position)
	g.touch()
	g.addEvent(events.NewPersonMoved(g.ownerID, id, position, g.version))

	return nil
}

// DeletePerson removes a person and every relation naming it as an endpoint.
// Both removals happen before returning so no caller sees a dangling relation.
func (g *Graph) DeletePerson(id string) ([]string, error) {
	if _, exists := g.persons[id]; !exists {
		return nil, pkgerrors.NewNotFoundError("person")
	}

	// Remove all relations connected to this person
	removed := []string{}
	kept := g.relationOrder[:0]
	for _, relationID := range g.relationOrder {
		if g.relations[relationID].Touches(id) {
			removed = append(removed, relationID)
			delete(g.relations, relationID)
			continue
		}
		kept = append(kept, relationID)
	}
	g.relationOrder = kept

	// Remove the person
	delete(g.persons, id)
	g.personOrder = removeID(g.personOrder, id)
	g.touch()
	g.addEvent(events.NewPersonDeleted(g.ownerID, id, removed, g.version))

	return removed, nil
}

// AddRelation connects two existing persons
func (g *Graph) AddRelation(sourceID, targetID string, proximity valueobjects.Proximity) (*entities.Relation, error) {
	// Validate endpoints exist
	if !g.HasPerson(sourceID) {
		return nil, pkgerrors.NewReferentialError("source person does not exist").
			WithDetails(map[string]interface{}{"sourceId": sourceID})
	}
	if !g.HasPerson(targetID) {
		return nil, pkgerrors.NewReferentialError("target person does not exist").
			WithDetails(map[string]interface{}{"targetId": targetID})
	}
	// Check for self-reference
	if sourceID == targetID && !g.config.AllowSelfRelations {
		return nil, pkgerrors.NewValidationError("cannot relate a person to itself")
	}
	// Check for duplicate relation
	if !g.config.AllowDuplicateRelations && g.hasRelationBetween(sourceID, targetID) {
		return nil, pkgerrors.NewValidationError("relation already exists")
	}
	// Check relation limit (business rule)
	if len(g.relations) >= g.config.MaxRelations {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("maximum of %d relations reached", g.config.MaxRelations))
	}

	id, err := g.newID(g.config.RelationIDPrefix, func(id string) bool { _, ok := g.relations[id]; return ok })
	if err != nil {
		return nil, err
	}

	// Create the relation
	relation, err := entities.NewRelation(id, g.ownerID, sourceID, targetID, proximity)
	if err != nil {
		return nil, err
	}

	g.relations[id] = relation
	g.relationOrder = append(g.relationOrder, id)
	g.touch()
	g.addEvent(events.NewRelationAdded(g.ownerID, relation, g.version))

	return relation.Clone(), nil
}

// UpdateRelationProximity changes the proximity of the relation with id
func (g *Graph) UpdateRelationProximity(id string, proximity valueobjects.Proximity) (*entities.Relation, error) {
	relation, exists := g.relations[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("relation")
	}
	if err := relation.SetProximity(proximity); err != nil {
		return nil, err
	}

	g.touch()
	g.addEvent(events.NewRelationUpdated(g.ownerID, id, proximity, g.version))

	return relation.Clone(), nil
}

// DeleteRelation removes the relation with id
func (g *Graph) DeleteRelation(id string) error {
	if _, exists := g.relations[id]; !exists {
		return pkgerrors.NewNotFoundError("relation")
	}

	delete(g.relations, id)
	g.relationOrder = removeID(g.relationOrder, id)
	g.touch()
	g.addEvent(events.NewRelationDeleted(g.ownerID, id, g.version))

	return nil
}

// ReplaceAll swaps the whole content of the graph and records a GraphReplaced event.
// Duplicate ids keep the first occurrence and relations with unknown endpoints are dropped.
func (g *Graph) ReplaceAll(persons []*entities.Person, relations []*entities.Relation) (ReplaceResult, error) {
	if len(persons) > g.config.MaxPersons {
		return ReplaceResult{}, pkgerrors.NewValidationError(fmt.Sprintf("maximum of %d persons exceeded", g.config.MaxPersons))
	}
	if len(relations) > g.config.MaxRelations {
		return ReplaceResult{}, pkgerrors.NewValidationError(fmt.Sprintf("maximum of %d relations exceeded", g.config.MaxRelations))
	}

	previousPersons := append([]string(nil), g.personOrder...)
	previousRelations := append([]string(nil), g.relationOrder...)

	result := g.replace(persons, relations)
	g.touch()
	g.addEvent(events.NewGraphReplaced(g.ownerID, g.Persons(), g.Relations(), previousPersons, previousRelations, g.version))

	return result, nil
}

// Load replaces the content with rows fetched from the backing store.
// No event is recorded since the store already holds this state.
func (g *Graph) Load(persons []*entities.Person, relations []*entities.Relation) ReplaceResult {
	result := g.replace(persons, relations)
	g.touch()
	return result
}

// Clear removes every person and relation
func (g *Graph) Clear() {
	personIDs := append([]string{}, g.personOrder...)
	relationIDs := append([]string{}, g.relationOrder...)

	g.persons = make(map[string]*entities.Person)
	g.relations = make(map[string]*entities.Relation)
	g.personOrder = nil
	g.relationOrder = nil
	g.touch()
	g.addEvent(events.NewGraphCleared(g.ownerID, personIDs, relationIDs, g.version))
}

// Validate ensures graph invariants
func (g *Graph) Validate() error {
	if len(g.persons) != len(g.personOrder) {
		return pkgerrors.NewInternalError("person count mismatch")
	}
	if len(g.relations) != len(g.relationOrder) {
		return pkgerrors.NewInternalError("relation count mismatch")
	}
	for _, relation := range g.relations {
		if !g.HasPerson(relation.SourceID()) {
			return pkgerrors.NewReferentialError("relation references non-existent source person")
		}
		if !g.HasPerson(relation.TargetID()) {
			return pkgerrors.NewReferentialError("relation references non-existent target person")
		}
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (g *Graph) GetUncommittedEvents() []events.DomainEvent {
	allEvents := make([]events.DomainEvent, len(g.events))
	copy(allEvents, g.events)
	return allEvents
}

// MarkEventsAsCommitted clears all uncommitted events
func (g *Graph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
}

// Private helper methods

func (g *Graph) replace(persons []*entities.Person, relations []*entities.Relation) ReplaceResult {
	var result ReplaceResult

	g.persons = make(map[string]*entities.Person, len(persons))
	g.personOrder = make([]string, 0, len(persons))
	for _, person := range persons {
		if person == nil {
			continue
		}
		if _, exists := g.persons[person.ID()]; exists {
			result.DuplicatePersonIDs = append(result.DuplicatePersonIDs, person.ID())
			continue
		}
		g.persons[person.ID()] = person.Clone()
		g.personOrder = append(g.personOrder, person.ID())
	}

	g.relations = make(map[string]*entities.Relation, len(relations))
	g.relationOrder = make([]string, 0, len(relations))
	for _, relation := range relations {
		if relation == nil {
			continue
		}
		if _, exists := g.relations[relation.ID()]; exists {
			result.DuplicateRelationIDs = append(result.DuplicateRelationIDs, relation.ID())
			continue
		}
		if !g.HasPerson(relation.SourceID()) || !g.HasPerson(relation.TargetID()) {
			result.DroppedRelationIDs = append(result.DroppedRelationIDs, relation.ID())
			continue
		}
		g.relations[relation.ID()] = relation.Clone()
		g.relationOrder = append(g.relationOrder, relation.ID())
	}

	return result
}

func (g *Graph) newID(prefix string, taken func(string) bool) (string, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		if id := g.ids.Generate(prefix); id != "" && !taken(id) {
			return id, nil
		}
	}
	return "", pkgerrors.NewInternalError("could not generate a unique identifier")
}

func (g *Graph) hasRelationBetween(sourceID, targetID string) bool {
	for _, relation := range g.relations {
		if relation.SourceID() == sourceID && relation.TargetID() == targetID {
			return true
		}
	}
	return false
}

func (g *Graph) touch() {
	g.updatedAt = time.Now().UTC()
	g.version++
}

func (g *Graph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
