package graphsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"relmap/application/ports"
	"relmap/domain/core/aggregates"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	"relmap/domain/events"
	"relmap/infrastructure/persistence/memory"
	pkgerrors "relmap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const owner = "user123"

// MockNotifier records notifications
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notification ports.Notification) error {
	args := m.Called(notification.Operation, notification.Level)
	return args.Error(0)
}

// MockPublisher mocks the event bus
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(event.GetEventType())
	return args.Error(0)
}

func (m *MockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(evts)
	return args.Error(0)
}

// flakyTables fails the methods a test configures
type flakyTables struct {
	*memory.TableService
	failInsertPersons  bool
	failDeletePersons  bool
	failRelationDelete bool
	failSelect         bool
}

func (f *flakyTables) InsertPersons(ctx context.Context, ownerID string, rows []ports.PersonRecord) error {
	if f.failInsertPersons {
		return errors.New("connection reset")
	}
	return f.TableService.InsertPersons(ctx, ownerID, rows)
}

func (f *flakyTables) DeletePersons(ctx context.Context, ownerID string, ids []string) error {
	if f.failDeletePersons {
		return errors.New("connection reset")
	}
	return f.TableService.DeletePersons(ctx, ownerID, ids)
}

func (f *flakyTables) DeleteRelationsByPerson(ctx context.Context, ownerID, personID string) error {
	if f.failRelationDelete {
		return errors.New("statement timeout")
	}
	return f.TableService.DeleteRelationsByPerson(ctx, ownerID, personID)
}

func (f *flakyTables) SelectRelations(ctx context.Context, ownerID string) ([]ports.RelationRecord, error) {
	if f.failSelect {
		return nil, errors.New("permission denied")
	}
	return f.TableService.SelectRelations(ctx, ownerID)
}

func newTestGraph(t *testing.T) *aggregates.Graph {
	t.Helper()
	n := 0
	ids := valueobjects.GeneratorFunc(func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	})
	graph, err := aggregates.NewGraph(owner, ids, nil)
	require.NoError(t, err)
	return graph
}

func startAdapter(t *testing.T, tables ports.TableService, notifier ports.Notifier, publisher ports.EventPublisher) *Adapter {
	t.Helper()
	adapter := NewAdapter(owner, tables, notifier, publisher, nil, zap.NewNop(), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	adapter.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = adapter.Stop(stopCtx)
		cancel()
	})
	return adapter
}

func flush(t *testing.T, graph *aggregates.Graph, adapter *Adapter) {
	t.Helper()
	adapter.Enqueue(graph.GetUncommittedEvents()...)
	graph.MarkEventsAsCommitted()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, adapter.Wait(ctx))
}

func person(first, last string, p valueobjects.Proximity) entities.PersonData {
	return entities.PersonData{FirstName: first, LastName: last, Proximity: p}
}

func TestAdapter_PersistsMutationsInOrder(t *testing.T) {
	tables := memory.NewTableService()
	notifier := new(MockNotifier)
	adapter := startAdapter(t, tables, notifier, nil)
	graph := newTestGraph(t)
	ctx := context.Background()

	marie, err := graph.AddPerson(person("Marie", "Dupont", valueobjects.ProximityStrong))
	require.NoError(t, err)
	jean, err := graph.AddPerson(person("Jean", "Martin", valueobjects.ProximityMedium))
	require.NoError(t, err)
	relation, err := graph.AddRelation(marie.ID(), jean.ID(), valueobjects.ProximityMedium)
	require.NoError(t, err)
	require.NoError(t, graph.SetPersonPosition(jean.ID(), valueobjects.Position{X: 10, Y: 20}))
	_, err = graph.UpdatePerson(marie.ID(), entities.PersonData{
		FirstName: "Marie", LastName: "Dupont", Company: "Acme", Proximity: valueobjects.ProximityWeak,
		Categories: valueobjects.CategorySetOf(valueobjects.CategoryAdvisor),
	})
	require.NoError(t, err)
	_, err = graph.UpdateRelationProximity(relation.ID(), valueobjects.ProximityStrong)
	require.NoError(t, err)

	flush(t, graph, adapter)

	persons, err := tables.SelectPersons(ctx, owner)
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "faible", persons[0].Proximity)
	require.NotNil(t, persons[0].Company)
	assert.Equal(t, "Acme", *persons[0].Company)
	assert.Equal(t, []string{"Advisor"}, persons[0].Categories)
	require.NotNil(t, persons[1].PositionX)
	assert.Equal(t, 10.0, *persons[1].PositionX)
	assert.Equal(t, 20.0, *persons[1].PositionY)

	relations, err := tables.SelectRelations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "fort", relations[0].Proximity)
	assert.Equal(t, marie.ID(), relations[0].SourceID)

	// Cascade reaches the store
	_, err = graph.DeletePerson(marie.ID())
	require.NoError(t, err)
	flush(t, graph, adapter)

	persons, err = tables.SelectPersons(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, persons, 1)
	relations, err = tables.SelectRelations(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, relations)

	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	assert.Equal(t, 0, adapter.Pending())
}

func TestAdapter_LoadRoundTrip(t *testing.T) {
	tables := memory.NewTableService()
	adapter := startAdapter(t, tables, nil, nil)
	graph := newTestGraph(t)

	a, err := graph.AddPerson(person("Marie", "Dupont", valueobjects.ProximityStrong))
	require.NoError(t, err)
	b, err := graph.AddPerson(person("Jean", "Martin", valueobjects.ProximityWeak))
	require.NoError(t, err)
	_, err = graph.AddRelation(a.ID(), b.ID(), valueobjects.ProximityMedium)
	require.NoError(t, err)
	flush(t, graph, adapter)

	persons, relations, err := adapter.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, persons, 2)
	require.Len(t, relations, 1)
	assert.Equal(t, "Marie", persons[0].FirstName())
	assert.Equal(t, valueobjects.ProximityWeak, persons[1].Proximity())
	assert.Nil(t, persons[0].Position())
	assert.Equal(t, b.ID(), relations[0].TargetID())
}

func TestAdapter_LoadFailure(t *testing.T) {
	tables := &flakyTables{TableService: memory.NewTableService(), failSelect: true}
	notifier := new(MockNotifier)
	notifier.On("Notify", OpLoad, ports.LevelError).Return(nil).Once()
	adapter := startAdapter(t, tables, notifier, nil)

	persons, relations, err := adapter.Load(context.Background())

	assert.True(t, pkgerrors.IsRemoteSync(err))
	assert.Nil(t, persons)
	assert.Nil(t, relations)
	notifier.AssertExpectations(t)
}

func TestAdapter_FailureDoesNotStopTheQueue(t *testing.T) {
	tables := &flakyTables{TableService: memory.NewTableService(), failInsertPersons: true}
	notifier := new(MockNotifier)
	notifier.On("Notify", OpInsertPerson, ports.LevelError).Return(nil).Once()
	adapter := startAdapter(t, tables, notifier, nil)
	graph := newTestGraph(t)

	a, err := graph.AddPerson(person("Marie", "Dupont", valueobjects.ProximityStrong))
	require.NoError(t, err)
	flush(t, graph, adapter)

	tables.failInsertPersons = false
	_, err = graph.AddPerson(person("Jean", "Martin", valueobjects.ProximityWeak))
	require.NoError(t, err)
	flush(t, graph, adapter)

	// Local state keeps the person whose insert failed
	assert.True(t, graph.HasPerson(a.ID()))

	rows, err := tables.SelectPersons(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jean", rows[0].FirstName)
	notifier.AssertExpectations(t)
}

func TestAdapter_PartialDeleteReportedDistinctly(t *testing.T) {
	tables := &flakyTables{TableService: memory.NewTableService()}
	notifier := new(MockNotifier)
	notifier.On("Notify", OpDeletePersonRelations, ports.LevelWarning).Return(nil).Once()
	adapter := startAdapter(t, tables, notifier, nil)
	graph := newTestGraph(t)

	a, err := graph.AddPerson(person("Marie", "Dupont", valueobjects.ProximityStrong))
	require.NoError(t, err)
	b, err := graph.AddPerson(person("Jean", "Martin", valueobjects.ProximityWeak))
	require.NoError(t, err)
	_, err = graph.AddRelation(a.ID(), b.ID(), valueobjects.ProximityMedium)
	require.NoError(t, err)
	flush(t, graph, adapter)

	tables.failRelationDelete = true
	_, err = graph.DeletePerson(a.ID())
	require.NoError(t, err)
	flush(t, graph, adapter)

	ctx := context.Background()
	persons, err := tables.SelectPersons(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, persons, 1)

	// The orphan row stays remotely, the local cascade still holds
	relations, err := tables.SelectRelations(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, relations, 1)
	assert.Equal(t, 0, graph.RelationCount())
	notifier.AssertExpectations(t)
}

func TestAdapter_FailedPersonDeleteReportsOnce(t *testing.T) {
	tables := &flakyTables{TableService: memory.NewTableService(), failDeletePersons: true}
	notifier := new(MockNotifier)
	notifier.On("Notify", OpDeletePerson, ports.LevelError).Return(nil).Once()
	adapter := startAdapter(t, tables, notifier, nil)
	graph := newTestGraph(t)

	a, err := graph.AddPerson(person("Marie", "Dupont", valueobjects.ProximityStrong))
	require.NoError(t, err)
	_, err = graph.DeletePerson(a.ID())
	require.NoError(t, err)
	flush(t, graph, adapter)

	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestAdapter_ReplaceAndClear(t *testing.T) {
	tables := memory.NewTableService()
	adapter := startAdapter(t, tables, nil, nil)
	graph := newTestGraph(t)
	ctx := context.Background()

	_, err := graph.AddPerson(person("Old", "Person", valueobjects.ProximityStrong))
	require.NoError(t, err)
	flush(t, graph, adapter)

	now := time.Now()
	p1, err := entities.ReconstructPerson("p1", owner, person("A", "A", valueobjects.ProximityMedium), nil, now, now)
	require.NoError(t, err)
	p2, err := entities.ReconstructPerson("p2", owner, person("B", "B", valueobjects.ProximityMedium), nil, now, now)
	require.NoError(t, err)
	r1, err := entities.ReconstructRelation("r1", owner, "p1", "p2", valueobjects.ProximityWeak, now, now)
	require.NoError(t, err)
	_, err = graph.ReplaceAll([]*entities.Person{p1, p2}, []*entities.Relation{r1})
	require.NoError(t, err)
	flush(t, graph, adapter)

	persons, err := tables.SelectPersons(ctx, owner)
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "p1", persons[0].ID)
	relations, err := tables.SelectRelations(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, relations, 1)

	graph.Clear()
	flush(t, graph, adapter)

	persons, err = tables.SelectPersons(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, persons)
	relations, err = tables.SelectRelations(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, relations)
}

func TestAdapter_MirrorsPersistedEvents(t *testing.T) {
	tables := &flakyTables{TableService: memory.NewTableService()}
	notifier := new(MockNotifier)
	notifier.On("Notify", OpDeletePersonRelations, ports.LevelWarning).Return(nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", events.TypePersonAdded).Return(nil).Once()
	publisher.On("Publish", events.TypePersonMoved).Return(errors.New("bus unavailable")).Once()
	adapter := startAdapter(t, tables, notifier, publisher)
	graph := newTestGraph(t)

	a, err := graph.AddPerson(person("Marie", "Dupont", valueobjects.ProximityStrong))
	require.NoError(t, err)
	require.NoError(t, graph.SetPersonPosition(a.ID(), valueobjects.Position{X: 1, Y: 1}))
	tables.failRelationDelete = true
	_, err = graph.DeletePerson(a.ID())
	require.NoError(t, err)
	flush(t, graph, adapter)

	// The failed delete is not mirrored
	publisher.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", events.TypePersonDeleted)
}

func TestAdapter_StopWithoutStart(t *testing.T) {
	adapter := NewAdapter(owner, memory.NewTableService(), nil, nil, nil, zap.NewNop(), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, adapter.Stop(ctx))
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(0, 10))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunks(5, 2))
}
