package ports

import (
	"context"
	"time"
)

// Column names shared by every table service implementation
const (
	ColumnID        = "id"
	ColumnOwnerID   = "owner_id"
	ColumnFirstName = "first_name"
	ColumnLastName  = "last_name"
	ColumnCompany   = "company"
	ColumnComment   = "comment"
	ColumnProximity = "proximity"
	ColumnCategory  = "categories"
	ColumnPositionX = "position_x"
	ColumnPositionY = "position_y"
	ColumnSourceID  = "source_id"
	ColumnTargetID  = "target_id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// PersonRecord is a row of the persons table
type PersonRecord struct {
	ID         string    `json:"id" dynamodbav:"id"`
	OwnerID    string    `json:"owner_id" dynamodbav:"owner_id"`
	FirstName  string    `json:"first_name" dynamodbav:"first_name"`
	LastName   string    `json:"last_name" dynamodbav:"last_name"`
	Company    *string   `json:"company" dynamodbav:"company,omitempty"`
	Comment    *string   `json:"comment" dynamodbav:"comment,omitempty"`
	Proximity  string    `json:"proximity" dynamodbav:"proximity"`
	Categories []string  `json:"categories" dynamodbav:"categories"`
	PositionX  *float64  `json:"position_x" dynamodbav:"position_x,omitempty"`
	PositionY  *float64  `json:"position_y" dynamodbav:"position_y,omitempty"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// RelationRecord is a row of the relations table
type RelationRecord struct {
	ID        string    `json:"id" dynamodbav:"id"`
	OwnerID   string    `json:"owner_id" dynamodbav:"owner_id"`
	SourceID  string    `json:"source_id" dynamodbav:"source_id"`
	TargetID  string    `json:"target_id" dynamodbav:"target_id"`
	Proximity string    `json:"proximity" dynamodbav:"proximity"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Fields is a partial row keyed by column name
type Fields map[string]interface{}

// PersonTable defines owner-scoped access to persons.
// Every call is restricted to rows whose owner_id equals ownerID.
type PersonTable interface {
	// SelectPersons returns every person of ownerID
	SelectPersons(ctx context.Context, ownerID string) ([]PersonRecord, error)

	// InsertPersons inserts rows. Ids are assigned by the caller.
	InsertPersons(ctx context.Context, ownerID string, rows []PersonRecord) error

	// UpdatePerson updates the given columns of one row
	UpdatePerson(ctx context.Context, ownerID, id string, fields Fields) error

	// DeletePersons deletes the rows in ids
	DeletePersons(ctx context.Context, ownerID string, ids []string) error
}

// RelationTable defines owner-scoped access to relations
type RelationTable interface {
	// SelectRelations returns every relation of ownerID
	SelectRelations(ctx context.Context, ownerID string) ([]RelationRecord, error)

	// InsertRelations inserts rows. Ids are assigned by the caller.
	InsertRelations(ctx context.Context, ownerID string, rows []RelationRecord) error

	// UpdateRelation updates the given columns of one row
	UpdateRelation(ctx context.Context, ownerID, id string, fields Fields) error

	// DeleteRelations deletes the rows in ids
	DeleteRelations(ctx context.Context, ownerID string, ids []string) error

	// DeleteRelationsByPerson deletes rows whose source or target is personID
	DeleteRelationsByPerson(ctx context.Context, ownerID, personID string) error
}

// TableService is the persistent store collaborator
type TableService interface {
	PersonTable
	RelationTable

	// Ping checks that the backing store is reachable
	Ping(ctx context.Context) error
}

// ConnectionStore tracks live WebSocket connections per user
type ConnectionStore interface {
	// SaveConnection registers a connection until ttl elapses
	SaveConnection(ctx context.Context, userID, connectionID string, ttl time.Duration) error

	// Connections returns the live connection ids of userID
	Connections(ctx context.Context, userID string) ([]string, error)

	// RemoveConnection forgets a connection
	RemoveConnection(ctx context.Context, userID, connectionID string) error
}
