package session

import (
	"context"
	"sync"

	"relmap/application/graphsync"
	"relmap/application/interaction"
	"relmap/application/ports"
	"relmap/application/queries"
	"relmap/application/transfer"
	"relmap/domain/config"
	"relmap/domain/core/aggregates"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"

	"go.uber.org/zap"
)

// Dependencies are shared by every session
type Dependencies struct {
	Tables       ports.TableService
	Notifier     ports.Notifier
	Publisher    ports.EventPublisher
	Metrics      ports.Metrics
	Transfer     *transfer.Service
	IDs          valueobjects.IDGenerator
	DomainConfig *config.DomainConfig
	SyncConfig   graphsync.Config
	Logger       *zap.Logger
}

// Session is one owner's working copy of their map. Operations are serialized
// and every mutation is applied locally before it is queued for persistence.
type Session struct {
	mu         sync.Mutex
	ownerID    string
	graph      *aggregates.Graph
	adapter    *graphsync.Adapter
	controller *interaction.Controller
	transfer   *transfer.Service
	logger     *zap.Logger

	// closed is set by Close; mutations are refused afterwards
	closed bool
}

// Open loads the owner's map from the table service and starts its sync worker.
// loadCtx bounds the initial load, workerCtx the lifetime of the worker.
func Open(loadCtx, workerCtx context.Context, ownerID string, deps Dependencies) (*Session, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewAuthRequiredError("")
	}

	graph, err := aggregates.NewGraph(ownerID, deps.IDs, deps.DomainConfig)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger.With(zap.String("userID", ownerID))
	adapter := graphsync.NewAdapter(ownerID, deps.Tables, deps.Notifier, deps.Publisher, deps.Metrics, deps.Logger, deps.SyncConfig)

	persons, relations, err := adapter.Load(loadCtx)
	if err != nil {
		return nil, err
	}
	if result := graph.Load(persons, relations); len(result.DroppedRelationIDs) > 0 {
		logger.Warn("Ignoring orphan relation rows", zap.Strings("relationIDs", result.DroppedRelationIDs))
	}

	adapter.Start(workerCtx)

	return &Session{
		ownerID:    ownerID,
		graph:      graph,
		adapter:    adapter,
		controller: interaction.NewController(logger),
		transfer:   deps.Transfer,
		logger:     logger,
	}, nil
}

// OwnerID returns the owner of the session
func (s *Session) OwnerID() string {
	return s.ownerID
}

// AddPerson creates a person
func (s *Session) AddPerson(data entities.PersonData) (*entities.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.graph.AddPerson(data)
}

// UpdatePerson replaces the editable fields of a person
func (s *Session) UpdatePerson(id string, data entities.PersonData) (*entities.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.graph.UpdatePerson(id, data)
}

// DeletePerson removes a person and its relations, returning the removed relation ids
func (s *Session) DeletePerson(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	removed, err := s.graph.DeletePerson(id)
	if err != nil {
		return nil, err
	}
	s.controller.Forget(id)
	return removed, nil
}

// SetPersonPosition moves a person
func (s *Session) SetPersonPosition(id string, position valueobjects.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.graph.SetPersonPosition(id, position)
}

// AddRelation connects two persons directly
func (s *Session) AddRelation(sourceID, targetID string, proximity valueobjects.Proximity) (*entities.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.graph.AddRelation(sourceID, targetID, proximity)
}

// UpdateRelationProximity changes the proximity of a relation
func (s *Session) UpdateRelationProximity(id string, proximity valueobjects.Proximity) (*entities.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.graph.UpdateRelationProximity(id, proximity)
}

// DeleteRelation removes a relation
func (s *Session) DeleteRelation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.graph.DeleteRelation(id)
}

// Person returns one person
func (s *Session) Person(id string) (*entities.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Person(id)
}

// Relation returns one relation
func (s *Session) Relation(id string) (*entities.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Relation(id)
}

// Snapshot returns copies of every person and relation
func (s *Session) Snapshot() ([]*entities.Person, []*entities.Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Persons(), s.graph.Relations()
}

// Filter returns the visible subset
func (s *Session) Filter(criteria queries.FilterCriteria) queries.FilterResult {
	persons, relations := s.Snapshot()
	return queries.Filter(persons, relations, criteria)
}

// View returns the filtered graph prepared for rendering
func (s *Session) View(criteria queries.FilterCriteria) queries.GraphView {
	persons, relations := s.Snapshot()
	return queries.NewGraphView(persons, relations, criteria)
}

// Export encodes the whole map as a tabular document
func (s *Session) Export() ([]byte, error) {
	persons, relations := s.Snapshot()
	return s.transfer.Export(persons, relations)
}

// DocumentType returns the content type and file extension of exported documents
func (s *Session) DocumentType() (string, string) {
	return s.transfer.ContentType(), s.transfer.Extension()
}

// Import replaces the whole map with the content of a document.
// A malformed document leaves the map untouched.
func (s *Session) Import(data []byte) (transfer.ImportReport, error) {
	parsed, err := s.transfer.Decode(data, s.ownerID)
	if err != nil {
		return transfer.ImportReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transfer.ImportReport{}, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	result, err := s.graph.ReplaceAll(parsed.Persons, parsed.Relations)
	if err != nil {
		return transfer.ImportReport{}, err
	}
	s.controller.Cancel()

	report := transfer.NewImportReport(parsed, result, s.graph.PersonCount(), s.graph.RelationCount())
	s.logger.Info("Map imported",
		zap.Int("persons", report.Persons),
		zap.Int("relations", report.Relations),
		zap.Int("droppedRelations", len(report.DroppedRelations)),
		zap.Int("duplicateIDs", len(report.DuplicateIDs)),
	)
	return report, nil
}

// Reset removes every person and relation
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	s.graph.Clear()
	s.controller.Cancel()
	return nil
}

// Reload waits for pending writes, then replaces the map with the stored content
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.NewSessionClosedError()
	}

	if err := s.adapter.Wait(ctx); err != nil {
		return pkgerrors.NewRemoteSyncError(graphsync.OpLoad, err)
	}
	persons, relations, err := s.adapter.Load(ctx)
	if err != nil {
		return err
	}

	s.graph.Load(persons, relations)
	s.controller.Cancel()
	return nil
}

// Interaction

// InteractionState returns the controller state
func (s *Session) InteractionState() interaction.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Snapshot()
}

// Connect starts a pending connection
func (s *Session) Connect(sourceID, targetID string) (interaction.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Connect(s.graph, sourceID, targetID)
}

// ChooseProximity commits the pending connection
func (s *Session) ChooseProximity(proximity string) (*entities.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.controller.ChooseProximity(s.graph, proximity)
}

// CancelConnection discards the pending connection
func (s *Session) CancelConnection() interaction.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Cancel()
}

// NodeClicked returns the person bound to an edit view
func (s *Session) NodeClicked(personID string) (*entities.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.NodeClicked(s.graph, personID)
}

// EdgeClicked returns the relation bound to an edit view
func (s *Session) EdgeClicked(relationID string) (*entities.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.EdgeClicked(s.graph, relationID)
}

// NodeDragEnded stores a dragged position
func (s *Session) NodeDragEnded(personID string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.NewSessionClosedError()
	}
	defer s.flush()

	return s.controller.NodeDragEnded(s.graph, personID, x, y)
}

// Sync

// Pending returns the number of writes not yet persisted
func (s *Session) Pending() int {
	return s.adapter.Pending()
}

// Wait blocks until every queued write has been attempted
func (s *Session) Wait(ctx context.Context) error {
	return s.adapter.Wait(ctx)
}

// Close refuses further mutations, then drains pending writes and stops the
// sync worker. A mutation already in progress is queued before the drain.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return s.adapter.Stop(ctx)
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// flush hands recorded events to the sync worker
func (s *Session) flush() {
	evts := s.graph.GetUncommittedEvents()
	if len(evts) == 0 {
		return
	}
	s.graph.MarkEventsAsCommitted()
	s.adapter.Enqueue(evts...)
}
