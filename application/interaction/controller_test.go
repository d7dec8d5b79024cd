package interaction

import (
	"fmt"
	"math"
	"testing"

	"relmap/domain/core/aggregates"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Controller, *aggregates.Graph, string, string) {
	t.Helper()
	n := 0
	graph, err := aggregates.NewGraph("user123", valueobjects.GeneratorFunc(func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}), nil)
	require.NoError(t, err)

	a, err := graph.AddPerson(entities.PersonData{FirstName: "Marie", LastName: "Dupont", Proximity: valueobjects.ProximityStrong})
	require.NoError(t, err)
	b, err := graph.AddPerson(entities.PersonData{FirstName: "Jean", LastName: "Martin", Proximity: valueobjects.ProximityMedium})
	require.NoError(t, err)

	return NewController(zap.NewNop()), graph, a.ID(), b.ID()
}

func TestController_ConnectThenChoose(t *testing.T) {
	c, graph, a, b := setup(t)
	assert.Equal(t, StateIdle, c.State())

	snapshot, err := c.Connect(graph, a, b)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingConnectionProximity, snapshot.State)
	assert.Equal(t, &PendingConnection{SourceID: a, TargetID: b}, snapshot.Pending)
	assert.Equal(t, 0, graph.RelationCount())

	relation, err := c.ChooseProximity(graph, "moyen")
	require.NoError(t, err)

	assert.Equal(t, a, relation.SourceID())
	assert.Equal(t, b, relation.TargetID())
	assert.Equal(t, valueobjects.ProximityMedium, relation.Proximity())
	assert.Equal(t, 1, graph.RelationCount())
	assert.Equal(t, Snapshot{State: StateIdle}, c.Snapshot())
}

func TestController_Cancel(t *testing.T) {
	c, graph, a, b := setup(t)

	_, err := c.Connect(graph, a, b)
	require.NoError(t, err)

	snapshot := c.Cancel()

	assert.Equal(t, StateIdle, snapshot.State)
	assert.Nil(t, snapshot.Pending)
	assert.Equal(t, 0, graph.RelationCount())

	// Cancel while idle is a no-op
	assert.Equal(t, StateIdle, c.Cancel().State)
}

func TestController_ChooseProximityErrors(t *testing.T) {
	c, graph, a, b := setup(t)

	_, err := c.ChooseProximity(graph, "fort")
	require.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, "NO_PENDING_CONNECTION", pkgerrors.GetAppError(err).Code)

	_, err = c.Connect(graph, a, b)
	require.NoError(t, err)

	// An invalid choice keeps the connection pending
	_, err = c.ChooseProximity(graph, "close")
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, StateAwaitingConnectionProximity, c.State())

	// An endpoint removed meanwhile rejects the commit and returns to idle
	_, err = graph.DeletePerson(b)
	require.NoError(t, err)
	_, err = c.ChooseProximity(graph, "fort")
	assert.True(t, pkgerrors.IsReferential(err))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, graph.RelationCount())
}

func TestController_ConnectUnknownPerson(t *testing.T) {
	c, graph, a, _ := setup(t)

	_, err := c.Connect(graph, a, "ghost")

	assert.True(t, pkgerrors.IsReferential(err))
	assert.Equal(t, StateIdle, c.State())
}

func TestController_ReconnectReplacesPending(t *testing.T) {
	c, graph, a, b := setup(t)

	_, err := c.Connect(graph, a, b)
	require.NoError(t, err)
	snapshot, err := c.Connect(graph, b, a)
	require.NoError(t, err)

	assert.Equal(t, &PendingConnection{SourceID: b, TargetID: a}, snapshot.Pending)

	relation, err := c.ChooseProximity(graph, "faible")
	require.NoError(t, err)
	assert.Equal(t, b, relation.SourceID())
	assert.Equal(t, 1, graph.RelationCount())
}

func TestController_Forget(t *testing.T) {
	c, graph, a, b := setup(t)
	_, err := c.Connect(graph, a, b)
	require.NoError(t, err)

	c.Forget("someone-else")
	assert.Equal(t, StateAwaitingConnectionProximity, c.State())

	c.Forget(b)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_ClicksAndDrag(t *testing.T) {
	c, graph, a, b := setup(t)
	relation, err := graph.AddRelation(a, b, valueobjects.ProximityStrong)
	require.NoError(t, err)

	person, err := c.NodeClicked(graph, a)
	require.NoError(t, err)
	assert.Equal(t, "Marie", person.FirstName())

	edge, err := c.EdgeClicked(graph, relation.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobjects.ProximityStrong, edge.Proximity())

	_, err = c.NodeClicked(graph, "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = c.EdgeClicked(graph, "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, c.NodeDragEnded(graph, b, 30, 40))
	moved, err := graph.Person(b)
	require.NoError(t, err)
	assert.Equal(t, &valueobjects.Position{X: 30, Y: 40}, moved.Position())

	assert.True(t, pkgerrors.IsValidation(c.NodeDragEnded(graph, b, math.NaN(), 0)))
	assert.True(t, pkgerrors.IsNotFound(c.NodeDragEnded(graph, "ghost", 1, 1)))

	// Clicks never change the state
	assert.Equal(t, StateIdle, c.State())
}
