package graphsync

import (
	"time"

	"relmap/application/ports"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
)

// ToPersonRecord converts a person to a persons row
func ToPersonRecord(person *entities.Person) ports.PersonRecord {
	record := ports.PersonRecord{
		ID:         person.ID(),
		OwnerID:    person.OwnerID(),
		FirstName:  person.FirstName(),
		LastName:   person.LastName(),
		Company:    optional(person.Company()),
		Comment:    optional(person.Comment()),
		Proximity:  person.Proximity().String(),
		Categories: person.Categories().Strings(),
		CreatedAt:  person.CreatedAt(),
		UpdatedAt:  person.UpdatedAt(),
	}
	if pos := person.Position(); pos != nil {
		record.PositionX = &pos.X
		record.PositionY = &pos.Y
	}
	return record
}

// ToRelationRecord converts a relation to a relations row
func ToRelationRecord(relation *entities.Relation) ports.RelationRecord {
	return ports.RelationRecord{
		ID:        relation.ID(),
		OwnerID:   relation.OwnerID(),
		SourceID:  relation.SourceID(),
		TargetID:  relation.TargetID(),
		Proximity: relation.Proximity().String(),
		CreatedAt: relation.CreatedAt(),
		UpdatedAt: relation.UpdatedAt(),
	}
}

// PersonFields lists every editable column of a person, position excluded
func PersonFields(person *entities.Person) ports.Fields {
	return ports.Fields{
		ports.ColumnFirstName: person.FirstName(),
		ports.ColumnLastName:  person.LastName(),
		ports.ColumnCompany:   optional(person.Company()),
		ports.ColumnComment:   optional(person.Comment()),
		ports.ColumnProximity: person.Proximity().String(),
		ports.ColumnCategory:  person.Categories().Strings(),
		ports.ColumnUpdatedAt: person.UpdatedAt(),
	}
}

// PositionFields lists the position columns
func PositionFields(position valueobjects.Position, at time.Time) ports.Fields {
	return ports.Fields{
		ports.ColumnPositionX: position.X,
		ports.ColumnPositionY: position.Y,
		ports.ColumnUpdatedAt: at,
	}
}

// FromPersonRecord rebuilds a person from a row. Unknown categories are dropped
// and an unknown proximity falls back to moyen.
func FromPersonRecord(record ports.PersonRecord) (*entities.Person, error) {
	categories, _ := valueobjects.NewCategorySetLenient(record.Categories...)

	var position *valueobjects.Position
	if record.PositionX != nil && record.PositionY != nil {
		if pos, err := valueobjects.NewPosition(*record.PositionX, *record.PositionY); err == nil {
			position = &pos
		}
	}

	return entities.ReconstructPerson(
		record.ID,
		record.OwnerID,
		entities.PersonData{
			FirstName:  record.FirstName,
			LastName:   record.LastName,
			Company:    deref(record.Company),
			Comment:    deref(record.Comment),
			Proximity:  valueobjects.ProximityOrDefault(record.Proximity),
			Categories: categories,
		},
		position,
		record.CreatedAt,
		record.UpdatedAt,
	)
}

// FromRelationRecord rebuilds a relation from a row
func FromRelationRecord(record ports.RelationRecord) (*entities.Relation, error) {
	return entities.ReconstructRelation(
		record.ID,
		record.OwnerID,
		record.SourceID,
		record.TargetID,
		valueobjects.ProximityOrDefault(record.Proximity),
		record.CreatedAt,
		record.UpdatedAt,
	)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
