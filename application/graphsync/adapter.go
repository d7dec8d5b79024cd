package graphsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"relmap/application/ports"
	"relmap/domain/core/entities"
	"relmap/domain/events"
	pkgerrors "relmap/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Remote operation names, used in logs, metrics and notifications
const (
	OpLoad                  = "load"
	OpInsertPerson          = "insert_person"
	OpUpdatePerson          = "update_person"
	OpMovePerson            = "move_person"
	OpDeletePerson          = "delete_person"
	OpDeletePersonRelations = "delete_person_relations"
	OpInsertRelation        = "insert_relation"
	OpUpdateRelation        = "update_relation"
	OpDeleteRelation        = "delete_relation"
	OpReplaceGraph          = "replace_graph"
	OpClearGraph            = "clear_graph"
)

var operationMessages = map[string]string{
	OpLoad:                  "Your map could not be loaded.",
	OpInsertPerson:          "The new person could not be saved.",
	OpUpdatePerson:          "Changes to the person could not be saved.",
	OpMovePerson:            "The new position could not be saved.",
	OpDeletePerson:          "The person could not be deleted from storage.",
	OpDeletePersonRelations: "The person was deleted but some of their relations remain in storage.",
	OpInsertRelation:        "The new relation could not be saved.",
	OpUpdateRelation:        "Changes to the relation could not be saved.",
	OpDeleteRelation:        "The relation could not be deleted from storage.",
	OpReplaceGraph:          "The imported map could not be fully saved.",
	OpClearGraph:            "The map could not be fully cleared from storage.",
}

// Config tunes an adapter
type Config struct {
	// BatchSize bounds the number of ids or rows per remote call
	BatchSize int
}

// DefaultConfig returns the default adapter configuration
func DefaultConfig() Config {
	return Config{BatchSize: 500}
}

// Adapter keeps the table service eventually consistent with one owner's graph.
// Local mutations are never rolled back: failures are logged and notified.
type Adapter struct {
	ownerID   string
	tables    ports.TableService
	notifier  ports.Notifier
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger
	config    Config

	queue *Queue

	startOnce   sync.Once
	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewAdapter creates an adapter for ownerID. publisher may be nil.
func NewAdapter(
	ownerID string,
	tables ports.TableService,
	notifier ports.Notifier,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
	config Config,
) *Adapter {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Adapter{
		ownerID:     ownerID,
		tables:      tables,
		notifier:    notifier,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger.With(zap.String("userID", ownerID)),
		config:      config,
		queue:       NewQueue(),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Load fetches every person and relation of the owner in parallel
func (a *Adapter) Load(ctx context.Context) ([]*entities.Person, []*entities.Relation, error) {
	var personRows []ports.PersonRecord
	var relationRows []ports.RelationRecord

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.tables.SelectPersons(gctx, a.ownerID)
		personRows = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.tables.SelectRelations(gctx, a.ownerID)
		relationRows = rows
		return err
	})
	err := g.Wait()
	a.metrics.ObserveRemoteCall(OpLoad, time.Since(start), err)
	if err != nil {
		a.logger.Error("Failed to load map", zap.Error(err))
		a.notify(ctx, ports.LevelError, OpLoad)
		return nil, nil, pkgerrors.NewRemoteSyncError(OpLoad, err)
	}

	persons := make([]*entities.Person, 0, len(personRows))
	for _, row := range personRows {
		person, err := FromPersonRecord(row)
		if err != nil {
			a.logger.Warn("Skipping unreadable person row", zap.String("personID", row.ID), zap.Error(err))
			continue
		}
		persons = append(persons, person)
	}

	relations := make([]*entities.Relation, 0, len(relationRows))
	for _, row := range relationRows {
		relation, err := FromRelationRecord(row)
		if err != nil {
			a.logger.Warn("Skipping unreadable relation row", zap.String("relationID", row.ID), zap.Error(err))
			continue
		}
		relations = append(relations, relation)
	}

	a.logger.Info("Map loaded",
		zap.Int("persons", len(persons)),
		zap.Int("relations", len(relations)),
		zap.Duration("duration", time.Since(start)),
	)
	return persons, relations, nil
}

// Start runs the worker until Stop is called or ctx is cancelled
func (a *Adapter) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.processLoop(ctx)
	})
}

// Enqueue schedules events for persistence without blocking
func (a *Adapter) Enqueue(evts ...events.DomainEvent) {
	a.queue.Push(evts...)
	a.metrics.AddQueueDepth(len(evts))
}

// Pending returns the number of events not yet persisted
func (a *Adapter) Pending() int {
	return a.queue.Len()
}

// Wait blocks until the queue is drained
func (a *Adapter) Wait(ctx context.Context) error {
	return a.queue.Wait(ctx)
}

// Stop drains the queue then stops the worker
func (a *Adapter) Stop(ctx context.Context) error {
	err := a.Wait(ctx)
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})
	// Start may never have been called
	a.startOnce.Do(func() { close(a.stoppedChan) })
	select {
	case <-a.stoppedChan:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (a *Adapter) processLoop(ctx context.Context) {
	defer close(a.stoppedChan)

	for {
		a.drain(ctx)

		select {
		case <-ctx.Done():
			a.logger.Info("Context cancelled, stopping sync worker", zap.Int("pending", a.queue.Len()))
			return
		case <-a.stopChan:
			a.drain(ctx)
			return
		case <-a.queue.Signal():
		}
	}
}

func (a *Adapter) drain(ctx context.Context) {
	for {
		event, ok := a.queue.Pop()
		if !ok {
			return
		}

		if err := a.apply(ctx, event); err != nil {
			a.logger.Warn("Sync operation failed",
				zap.String("eventType", event.GetEventType()),
				zap.Int("version", event.GetVersion()),
				zap.Error(err),
			)
		} else {
			a.mirror(ctx, event)
		}

		a.queue.Done()
		a.metrics.AddQueueDepth(-1)
	}
}

// apply translates one event into table service calls
func (a *Adapter) apply(ctx context.Context, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.PersonAdded:
		return a.call(ctx, OpInsertPerson, func(ctx context.Context) error {
			return a.tables.InsertPersons(ctx, a.ownerID, []ports.PersonRecord{ToPersonRecord(e.Person)})
		})

	case events.PersonUpdated:
		return a.call(ctx, OpUpdatePerson, func(ctx context.Context) error {
			return a.tables.UpdatePerson(ctx, a.ownerID, e.Person.ID(), PersonFields(e.Person))
		})

	case events.PersonMoved:
		return a.call(ctx, OpMovePerson, func(ctx context.Context) error {
			return a.tables.UpdatePerson(ctx, a.ownerID, e.PersonID, PositionFields(e.Position, e.Timestamp))
		})

	case events.PersonDeleted:
		return a.deletePerson(ctx, e)

	case events.RelationAdded:
		return a.call(ctx, OpInsertRelation, func(ctx context.Context) error {
			return a.tables.InsertRelations(ctx, a.ownerID, []ports.RelationRecord{ToRelationRecord(e.Relation)})
		})

	case events.RelationUpdated:
		return a.call(ctx, OpUpdateRelation, func(ctx context.Context) error {
			return a.tables.UpdateRelation(ctx, a.ownerID, e.RelationID, ports.Fields{
				ports.ColumnProximity: e.Proximity.String(),
				ports.ColumnUpdatedAt: e.Timestamp,
			})
		})

	case events.RelationDeleted:
		return a.call(ctx, OpDeleteRelation, func(ctx context.Context) error {
			return a.tables.DeleteRelations(ctx, a.ownerID, []string{e.RelationID})
		})

	case events.GraphReplaced:
		return a.call(ctx, OpReplaceGraph, func(ctx context.Context) error {
			return a.replaceGraph(ctx, e)
		})

	case events.GraphCleared:
		return a.call(ctx, OpClearGraph, func(ctx context.Context) error {
			return a.deleteAll(ctx, e.PersonIDs, e.RelationIDs)
		})

	default:
		a.logger.Debug("Ignoring event", zap.String("eventType", event.GetEventType()))
		return nil
	}
}

// deletePerson removes the person row and the relation rows naming it.
// A relation failure after a successful person delete is reported on its own.
func (a *Adapter) deletePerson(ctx context.Context, e events.PersonDeleted) error {
	personErr := a.call(ctx, OpDeletePerson, func(ctx context.Context) error {
		return a.tables.DeletePersons(ctx, a.ownerID, []string{e.PersonID})
	})
	if personErr != nil {
		// Try the relations anyway so fewer orphan rows remain
		_ = a.callQuiet(ctx, OpDeletePersonRelations, func(ctx context.Context) error {
			return a.tables.DeleteRelationsByPerson(ctx, a.ownerID, e.PersonID)
		})
		return personErr
	}

	return a.call(ctx, OpDeletePersonRelations, func(ctx context.Context) error {
		return a.tables.DeleteRelationsByPerson(ctx, a.ownerID, e.PersonID)
	})
}

func (a *Adapter) replaceGraph(ctx context.Context, e events.GraphReplaced) error {
	if err := a.deleteAll(ctx, e.PreviousPersonIDs, e.PreviousRelationIDs); err != nil {
		return err
	}

	personRows := make([]ports.PersonRecord, len(e.Persons))
	for i, person := range e.Persons {
		personRows[i] = ToPersonRecord(person)
	}
	for _, chunk := range chunks(len(personRows), a.config.BatchSize) {
		if err := a.tables.InsertPersons(ctx, a.ownerID, personRows[chunk[0]:chunk[1]]); err != nil {
			return fmt.Errorf("insert persons: %w", err)
		}
	}

	relationRows := make([]ports.RelationRecord, len(e.Relations))
	for i, relation := range e.Relations {
		relationRows[i] = ToRelationRecord(relation)
	}
	for _, chunk := range chunks(len(relationRows), a.config.BatchSize) {
		if err := a.tables.InsertRelations(ctx, a.ownerID, relationRows[chunk[0]:chunk[1]]); err != nil {
			return fmt.Errorf("insert relations: %w", err)
		}
	}
	return nil
}

// deleteAll removes relations before persons
func (a *Adapter) deleteAll(ctx context.Context, personIDs, relationIDs []string) error {
	for _, chunk := range chunks(len(relationIDs), a.config.BatchSize) {
		if err := a.tables.DeleteRelations(ctx, a.ownerID, relationIDs[chunk[0]:chunk[1]]); err != nil {
			return fmt.Errorf("delete relations: %w", err)
		}
	}
	for _, chunk := range chunks(len(personIDs), a.config.BatchSize) {
		if err := a.tables.DeletePersons(ctx, a.ownerID, personIDs[chunk[0]:chunk[1]]); err != nil {
			return fmt.Errorf("delete persons: %w", err)
		}
	}
	return nil
}

// call runs one remote operation, notifying the user on failure
func (a *Adapter) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := a.callQuiet(ctx, operation, fn)
	if err != nil {
		level := ports.LevelError
		if operation == OpDeletePersonRelations {
			level = ports.LevelWarning
		}
		a.notify(ctx, level, operation)
	}
	return err
}

func (a *Adapter) callQuiet(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	a.metrics.ObserveRemoteCall(operation, time.Since(start), err)
	if err != nil {
		a.logger.Error("Remote operation failed",
			zap.String("operation", operation),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return pkgerrors.NewRemoteSyncError(operation, err)
	}
	return nil
}

func (a *Adapter) notify(ctx context.Context, level ports.NotificationLevel, operation string) {
	if a.notifier == nil {
		return
	}
	notification := ports.Notification{
		ID:        uuid.New().String(),
		UserID:    a.ownerID,
		Level:     level,
		Operation: operation,
		Message:   operationMessages[operation],
		CreatedAt: time.Now().UTC(),
	}
	if err := a.notifier.Notify(ctx, notification); err != nil {
		a.logger.Warn("Failed to deliver notification", zap.String("operation", operation), zap.Error(err))
	}
}

// mirror forwards a persisted event to the event bus. Failures are only logged.
func (a *Adapter) mirror(ctx context.Context, event events.DomainEvent) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.Warn("Failed to mirror event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// chunks splits [0, n) into half-open ranges of at most size
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
