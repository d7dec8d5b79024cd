package resilience

import (
	"context"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"relmap/application/ports"
)

// TableService wraps a ports.TableService with retries behind a circuit breaker
type TableService struct {
	inner ports.TableService
	exec  *executor
}

// NewTableService decorates inner
func NewTableService(inner ports.TableService, retry RetryConfig, breaker BreakerConfig, logger *zap.Logger) *TableService {
	return &TableService{
		inner: inner,
		exec:  newExecutor(retry, breaker, logger.Named("resilient_tables")),
	}
}

// BreakerState reports the breaker state for health checks
func (s *TableService) BreakerState() gobreaker.State {
	return s.exec.State()
}

func (s *TableService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *TableService) SelectPersons(ctx context.Context, ownerID string) ([]ports.PersonRecord, error) {
	var rows []ports.PersonRecord
	err := s.exec.run(ctx, "select_persons", true, func() error {
		var err error
		rows, err = s.inner.SelectPersons(ctx, ownerID)
		return err
	})
	return rows, err
}

func (s *TableService) InsertPersons(ctx context.Context, ownerID string, rows []ports.PersonRecord) error {
	return s.exec.run(ctx, "insert_persons", false, func() error {
		return s.inner.InsertPersons(ctx, ownerID, rows)
	})
}

func (s *TableService) UpdatePerson(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	return s.exec.run(ctx, "update_person", true, func() error {
		return s.inner.UpdatePerson(ctx, ownerID, id, fields)
	})
}

func (s *TableService) DeletePersons(ctx context.Context, ownerID string, ids []string) error {
	return s.exec.run(ctx, "delete_persons", true, func() error {
		return s.inner.DeletePersons(ctx, ownerID, ids)
	})
}

func (s *TableService) SelectRelations(ctx context.Context, ownerID string) ([]ports.RelationRecord, error) {
	var rows []ports.RelationRecord
	err := s.exec.run(ctx, "select_relations", true, func() error {
		var err error
		rows, err = s.inner.SelectRelations(ctx, ownerID)
		return err
	})
	return rows, err
}

func (s *TableService) InsertRelations(ctx context.Context, ownerID string, rows []ports.RelationRecord) error {
	return s.exec.run(ctx, "insert_relations", false, func() error {
		return s.inner.InsertRelations(ctx, ownerID, rows)
	})
}

func (s *TableService) UpdateRelation(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	return s.exec.run(ctx, "update_relation", true, func() error {
		return s.inner.UpdateRelation(ctx, ownerID, id, fields)
	})
}

func (s *TableService) DeleteRelations(ctx context.Context, ownerID string, ids []string) error {
	return s.exec.run(ctx, "delete_relations", true, func() error {
		return s.inner.DeleteRelations(ctx, ownerID, ids)
	})
}

func (s *TableService) DeleteRelationsByPerson(ctx context.Context, ownerID, personID string) error {
	return s.exec.run(ctx, "delete_person_relations", true, func() error {
		return s.inner.DeleteRelationsByPerson(ctx, ownerID, personID)
	})
}
