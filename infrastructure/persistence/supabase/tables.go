// Package supabase stores persons and relations in Supabase tables.
package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"relmap/application/ports"
)

// TableService implements ports.TableService over the Supabase REST interface.
// The client is expected to use the service role key, so owner scoping is done
// here: every query filters on owner_id.
type TableService struct {
	client         *supabase.Client
	personsTable   string
	relationsTable string
	logger         *zap.Logger
}

// NewClient creates a Supabase client
func NewClient(url, serviceKey string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create supabase client: %w", err)
	}
	return client, nil
}

// NewTableService creates a table service bound to the given tables
func NewTableService(client *supabase.Client, personsTable, relationsTable string, logger *zap.Logger) *TableService {
	return &TableService{
		client:         client,
		personsTable:   personsTable,
		relationsTable: relationsTable,
		logger:         logger,
	}
}

// Ping issues a head request against the persons table
func (s *TableService) Ping(ctx context.Context) error {
	_, _, err := s.client.From(s.personsTable).
		Select(ports.ColumnID, "exact", true).
		Limit(1, "").
		Execute()
	return err
}

func (s *TableService) SelectPersons(ctx context.Context, ownerID string) ([]ports.PersonRecord, error) {
	var rows []ports.PersonRecord
	_, err := s.client.From(s.personsTable).
		Select("*", "", false).
		Eq(ports.ColumnOwnerID, ownerID).
		Order(ports.ColumnCreatedAt, nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("select persons: %w", err)
	}
	return rows, nil
}

func (s *TableService) InsertPersons(ctx context.Context, ownerID string, rows []ports.PersonRecord) error {
	if len(rows) == 0 {
		return nil
	}
	payload := make([]ports.PersonRecord, len(rows))
	for i, row := range rows {
		row.OwnerID = ownerID
		payload[i] = row
	}

	_, _, err := s.client.From(s.personsTable).
		Insert(payload, true, conflictTarget, "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert persons: %w", err)
	}
	return nil
}

func (s *TableService) UpdatePerson(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	_, _, err := s.client.From(s.personsTable).
		Update(payloadOf(fields), "minimal", "").
		Eq(ports.ColumnOwnerID, ownerID).
		Eq(ports.ColumnID, id).
		Execute()
	if err != nil {
		return fmt.Errorf("update person %s: %w", id, err)
	}
	return nil
}

func (s *TableService) DeletePersons(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, _, err := s.client.From(s.personsTable).
		Delete("minimal", "").
		Eq(ports.ColumnOwnerID, ownerID).
		In(ports.ColumnID, ids).
		Execute()
	if err != nil {
		return fmt.Errorf("delete persons: %w", err)
	}
	return nil
}

func (s *TableService) SelectRelations(ctx context.Context, ownerID string) ([]ports.RelationRecord, error) {
	var rows []ports.RelationRecord
	_, err := s.client.From(s.relationsTable).
		Select("*", "", false).
		Eq(ports.ColumnOwnerID, ownerID).
		Order(ports.ColumnCreatedAt, nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("select relations: %w", err)
	}
	return rows, nil
}

func (s *TableService) InsertRelations(ctx context.Context, ownerID string, rows []ports.RelationRecord) error {
	if len(rows) == 0 {
		return nil
	}
	payload := make([]ports.RelationRecord, len(rows))
	for i, row := range rows {
		row.OwnerID = ownerID
		payload[i] = row
	}

	_, _, err := s.client.From(s.relationsTable).
		Insert(payload, true, conflictTarget, "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert relations: %w", err)
	}
	return nil
}

func (s *TableService) UpdateRelation(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	_, _, err := s.client.From(s.relationsTable).
		Update(payloadOf(fields), "minimal", "").
		Eq(ports.ColumnOwnerID, ownerID).
		Eq(ports.ColumnID, id).
		Execute()
	if err != nil {
		return fmt.Errorf("update relation %s: %w", id, err)
	}
	return nil
}

func (s *TableService) DeleteRelations(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, _, err := s.client.From(s.relationsTable).
		Delete("minimal", "").
		Eq(ports.ColumnOwnerID, ownerID).
		In(ports.ColumnID, ids).
		Execute()
	if err != nil {
		return fmt.Errorf("delete relations: %w", err)
	}
	return nil
}

func (s *TableService) DeleteRelationsByPerson(ctx context.Context, ownerID, personID string) error {
	_, _, err := s.client.From(s.relationsTable).
		Delete("minimal", "").
		Eq(ports.ColumnOwnerID, ownerID).
		Or(endpointFilter(personID), "").
		Execute()
	if err != nil {
		return fmt.Errorf("delete relations of %s: %w", personID, err)
	}
	return nil
}

// endpointFilter builds the PostgREST or-filter matching either endpoint
func endpointFilter(personID string) string {
	quoted := `"` + strings.ReplaceAll(personID, `"`, `\"`) + `"`
	return fmt.Sprintf("%s.eq.%s,%s.eq.%s",
		ports.ColumnSourceID, quoted, ports.ColumnTargetID, quoted)
}

// payloadOf converts nil string pointers into JSON nulls
func payloadOf(fields ports.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if p, ok := v.(*string); ok {
			if p == nil {
				out[k] = nil
				continue
			}
			out[k] = *p
			continue
		}
		out[k] = v
	}
	return out
}
