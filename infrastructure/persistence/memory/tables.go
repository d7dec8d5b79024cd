package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"relmap/application/ports"
)

// TableService is an in-memory implementation of ports.TableService.
// Rows are partitioned by owner, so no call can reach another owner's rows.
type TableService struct {
	mu        sync.RWMutex
	persons   map[string][]ports.PersonRecord
	relations map[string][]ports.RelationRecord
}

// NewTableService creates an empty in-memory table service
func NewTableService() *TableService {
	return &TableService{
		persons:   make(map[string][]ports.PersonRecord),
		relations: make(map[string][]ports.RelationRecord),
	}
}

// Ping always succeeds
func (s *TableService) Ping(ctx context.Context) error {
	return ctx.Err()
}

// SelectPersons returns copies of the owner's persons in insertion order
func (s *TableService) SelectPersons(ctx context.Context, ownerID string) ([]ports.PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]ports.PersonRecord, 0, len(s.persons[ownerID]))
	for _, row := range s.persons[ownerID] {
		rows = append(rows, copyPerson(row))
	}
	return rows, nil
}

// InsertPersons inserts rows, failing on an existing id
func (s *TableService) InsertPersons(ctx context.Context, ownerID string, rows []ports.PersonRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.persons[ownerID]
	seen := make(map[string]struct{}, len(existing)+len(rows))
	for _, row := range existing {
		seen[row.ID] = struct{}{}
	}
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("duplicate key: person %s", row.ID)
		}
		seen[row.ID] = struct{}{}
	}

	now := time.Now().UTC()
	for _, row := range rows {
		row = copyPerson(row)
		row.OwnerID = ownerID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
		existing = append(existing, row)
	}
	s.persons[ownerID] = existing
	return nil
}

// UpdatePerson applies fields to one row. Updating a missing row is a no-op.
func (s *TableService) UpdatePerson(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.persons[ownerID]
	for i := range rows {
		if rows[i].ID == id {
			return applyPersonFields(&rows[i], fields)
		}
	}
	return nil
}

// DeletePersons removes rows by id
func (s *TableService) DeletePersons(ctx context.Context, ownerID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := toSet(ids)
	kept := s.persons[ownerID][:0]
	for _, row := range s.persons[ownerID] {
		if _, ok := drop[row.ID]; !ok {
			kept = append(kept, row)
		}
	}
	s.persons[ownerID] = kept
	return nil
}

// SelectRelations returns copies of the owner's relations in insertion order
func (s *TableService) SelectRelations(ctx context.Context, ownerID string) ([]ports.RelationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]ports.RelationRecord, len(s.relations[ownerID]))
	copy(rows, s.relations[ownerID])
	return rows, nil
}

// InsertRelations inserts rows, failing on an existing id
func (s *TableService) InsertRelations(ctx context.Context, ownerID string, rows []ports.RelationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.relations[ownerID]
	seen := make(map[string]struct{}, len(existing)+len(rows))
	for _, row := range existing {
		seen[row.ID] = struct{}{}
	}
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("duplicate key: relation %s", row.ID)
		}
		seen[row.ID] = struct{}{}
	}

	now := time.Now().UTC()
	for _, row := range rows {
		row.OwnerID = ownerID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
		existing = append(existing, row)
	}
	s.relations[ownerID] = existing
	return nil
}

// UpdateRelation applies fields to one row
func (s *TableService) UpdateRelation(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.relations[ownerID]
	for i := range rows {
		if rows[i].ID == id {
			return applyRelationFields(&rows[i], fields)
		}
	}
	return nil
}

// DeleteRelations removes rows by id
func (s *TableService) DeleteRelations(ctx context.Context, ownerID string, ids []string) error {
	drop := toSet(ids)
	return s.deleteRelationsWhere(ownerID, func(row ports.RelationRecord) bool {
		_, ok := drop[row.ID]
		return ok
	})
}

// DeleteRelationsByPerson removes rows whose source or target is personID
func (s *TableService) DeleteRelationsByPerson(ctx context.Context, ownerID, personID string) error {
	return s.deleteRelationsWhere(ownerID, func(row ports.RelationRecord) bool {
		return row.SourceID == personID || row.TargetID == personID
	})
}

func (s *TableService) deleteRelationsWhere(ownerID string, match func(ports.RelationRecord) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.relations[ownerID][:0]
	for _, row := range s.relations[ownerID] {
		if !match(row) {
			kept = append(kept, row)
		}
	}
	s.relations[ownerID] = kept
	return nil
}

func applyPersonFields(row *ports.PersonRecord, fields ports.Fields) error {
	for column, value := range fields {
		var err error
		switch column {
		case ports.ColumnFirstName:
			row.FirstName, err = asString(column, value)
		case ports.ColumnLastName:
			row.LastName, err = asString(column, value)
		case ports.ColumnCompany:
			row.Company, err = asOptionalString(column, value)
		case ports.ColumnComment:
			row.Comment, err = asOptionalString(column, value)
		case ports.ColumnProximity:
			row.Proximity, err = asString(column, value)
		case ports.ColumnCategory:
			categories, ok := value.([]string)
			if !ok {
				err = fmt.Errorf("column %s: expected []string, got %T", column, value)
			}
			row.Categories = append([]string(nil), categories...)
		case ports.ColumnPositionX:
			row.PositionX, err = asOptionalFloat(column, value)
		case ports.ColumnPositionY:
			row.PositionY, err = asOptionalFloat(column, value)
		case ports.ColumnUpdatedAt:
			row.UpdatedAt, err = asTime(column, value)
		default:
			err = fmt.Errorf("unknown person column %s", column)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyRelationFields(row *ports.RelationRecord, fields ports.Fields) error {
	for column, value := range fields {
		var err error
		switch column {
		case ports.ColumnProximity:
			row.Proximity, err = asString(column, value)
		case ports.ColumnSourceID:
			row.SourceID, err = asString(column, value)
		case ports.ColumnTargetID:
			row.TargetID, err = asString(column, value)
		case ports.ColumnUpdatedAt:
			row.UpdatedAt, err = asTime(column, value)
		default:
			err = fmt.Errorf("unknown relation column %s", column)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asString(column string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("column %s: expected string, got %T", column, value)
	}
	return s, nil
}

func asOptionalString(column string, value interface{}) (*string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *string:
		if v == nil {
			return nil, nil
		}
		s := *v
		return &s, nil
	case string:
		return &v, nil
	}
	return nil, fmt.Errorf("column %s: expected string, got %T", column, value)
}

func asOptionalFloat(column string, value interface{}) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case *float64:
		if v == nil {
			return nil, nil
		}
		f := *v
		return &f, nil
	}
	return nil, fmt.Errorf("column %s: expected number, got %T", column, value)
}

func asTime(column string, value interface{}) (time.Time, error) {
	t, ok := value.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("column %s: expected time, got %T", column, value)
	}
	return t, nil
}

func copyPerson(row ports.PersonRecord) ports.PersonRecord {
	row.Categories = append([]string(nil), row.Categories...)
	if row.Company != nil {
		company := *row.Company
		row.Company = &company
	}
	if row.Comment != nil {
		comment := *row.Comment
		row.Comment = &comment
	}
	if row.PositionX != nil {
		x := *row.PositionX
		row.PositionX = &x
	}
	if row.PositionY != nil {
		y := *row.PositionY
		row.PositionY = &y
	}
	return row
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
