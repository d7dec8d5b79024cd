package queries

import (
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
)

// GraphView represents the visible graph data for rendering
type GraphView struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

// GraphNode is a person as handed to the render layer
type GraphNode struct {
	ID         string                   `json:"id"`
	Label      string                   `json:"label"`
	FirstName  string                   `json:"firstName"`
	LastName   string                   `json:"lastName"`
	Company    string                   `json:"company,omitempty"`
	Comment    string                   `json:"comment,omitempty"`
	Proximity  valueobjects.Proximity   `json:"proximity"`
	Categories valueobjects.CategorySet `json:"categories"`
	Position   *valueobjects.Position   `json:"position,omitempty"`
}

// GraphEdge is a relation as handed to the render layer
type GraphEdge struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Proximity valueobjects.Proximity `json:"proximity"`
}

// GraphStats contains graph statistics
type GraphStats struct {
	TotalPersons     int                            `json:"totalPersons"`
	TotalRelations   int                            `json:"totalRelations"`
	VisiblePersons   int                            `json:"visiblePersons"`
	VisibleRelations int                            `json:"visibleRelations"`
	ByProximity      map[valueobjects.Proximity]int `json:"byProximity"`
}

// NewGraphView filters the map and converts the visible part for rendering
func NewGraphView(persons []*entities.Person, relations []*entities.Relation, criteria FilterCriteria) GraphView {
	result := Filter(persons, relations, criteria)

	view := GraphView{
		Nodes: make([]GraphNode, 0, len(result.Persons)),
		Edges: make([]GraphEdge, 0, len(result.Relations)),
		Stats: GraphStats{
			TotalPersons:     len(persons),
			TotalRelations:   len(relations),
			VisiblePersons:   len(result.Persons),
			VisibleRelations: len(result.Relations),
			ByProximity:      make(map[valueobjects.Proximity]int, len(valueobjects.AllProximities)),
		},
	}

	for _, p := range valueobjects.AllProximities {
		view.Stats.ByProximity[p] = 0
	}
	for _, person := range persons {
		view.Stats.ByProximity[person.Proximity()]++
	}

	for _, person := range result.Persons {
		view.Nodes = append(view.Nodes, ToGraphNode(person))
	}
	for _, relation := range result.Relations {
		view.Edges = append(view.Edges, ToGraphEdge(relation))
	}

	return view
}

// ToGraphNode converts a person
func ToGraphNode(person *entities.Person) GraphNode {
	return GraphNode{
		ID:         person.ID(),
		Label:      person.FullName(),
		FirstName:  person.FirstName(),
		LastName:   person.LastName(),
		Company:    person.Company(),
		Comment:    person.Comment(),
		Proximity:  person.Proximity(),
		Categories: person.Categories(),
		Position:   person.Position(),
	}
}

// ToGraphEdge converts a relation
func ToGraphEdge(relation *entities.Relation) GraphEdge {
	return GraphEdge{
		ID:        relation.ID(),
		Source:    relation.SourceID(),
		Target:    relation.TargetID(),
		Proximity: relation.Proximity(),
	}
}
