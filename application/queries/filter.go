package queries

import (
	"strings"

	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"
)

// ProximityAll disables the proximity predicate
const ProximityAll = "all"

// FilterCriteria selects the visible part of a map
type FilterCriteria struct {
	SearchTerm string
	Proximity  string
	Categories valueobjects.CategorySet
}

// NewFilterCriteria parses raw query values. An empty proximity means "all".
func NewFilterCriteria(search, proximity string, categories []string) (FilterCriteria, error) {
	criteria := FilterCriteria{SearchTerm: search, Proximity: ProximityAll}

	if p := strings.TrimSpace(proximity); p != "" && !strings.EqualFold(p, ProximityAll) {
		parsed, err := valueobjects.ParseProximity(p)
		if err != nil {
			return FilterCriteria{}, err
		}
		criteria.Proximity = parsed.String()
	}

	set, err := valueobjects.NewCategorySet(categories...)
	if err != nil {
		return FilterCriteria{}, pkgerrors.NewValidationError("unknown category filter")
	}
	criteria.Categories = set

	return criteria, nil
}

// FilterResult is the visible subset
type FilterResult struct {
	Persons   []*entities.Person
	Relations []*entities.Relation
}

// Filter derives visible persons and the relations fully contained in them.
// Hidden relations are only hidden, never removed from the input.
func Filter(persons []*entities.Person, relations []*entities.Relation, criteria FilterCriteria) FilterResult {
	term := strings.ToLower(strings.TrimSpace(criteria.SearchTerm))

	result := FilterResult{
		Persons:   make([]*entities.Person, 0, len(persons)),
		Relations: make([]*entities.Relation, 0, len(relations)),
	}
	visible := make(map[string]struct{}, len(persons))

	for _, person := range persons {
		if !matches(person, criteria, term) {
			continue
		}
		visible[person.ID()] = struct{}{}
		result.Persons = append(result.Persons, person)
	}

	for _, relation := range relations {
		_, sourceVisible := visible[relation.SourceID()]
		_, targetVisible := visible[relation.TargetID()]
		if sourceVisible && targetVisible {
			result.Relations = append(result.Relations, relation)
		}
	}

	return result
}

func matches(person *entities.Person, criteria FilterCriteria, term string) bool {
	if criteria.Proximity != "" && criteria.Proximity != ProximityAll &&
		criteria.Proximity != person.Proximity().String() {
		return false
	}
	if !criteria.Categories.IsEmpty() && !person.Categories().Intersects(criteria.Categories) {
		return false
	}
	if term == "" {
		return true
	}
	return strings.Contains(SearchText(person), term)
}

// SearchText is the lowercased text a search term is matched against
func SearchText(person *entities.Person) string {
	parts := []string{
		person.FirstName(),
		person.LastName(),
		person.Company(),
		person.Comment(),
		person.Proximity().String(),
	}
	parts = append(parts, person.Categories().Strings()...)
	return strings.ToLower(strings.Join(parts, " "))
}
