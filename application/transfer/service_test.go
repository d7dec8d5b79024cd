package transfer

import (
	"encoding/json"
	"fmt"
	"testing"

	"relmap/application/ports"
	"relmap/domain/core/aggregates"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// jsonCodec stands in for the spreadsheet codec
type jsonCodec struct{}

func (jsonCodec) Encode(w *ports.Workbook) ([]byte, error) { return json.Marshal(w) }
func (jsonCodec) Decode(data []byte) (*ports.Workbook, error) {
	var w ports.Workbook
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
func (jsonCodec) ContentType() string { return "application/json" }
func (jsonCodec) Extension() string   { return "json" }

func sequentialIDs() valueobjects.IDGenerator {
	n := 0
	return valueobjects.GeneratorFunc(func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	})
}

func newService() *Service {
	return NewService(jsonCodec{}, sequentialIDs(), nil, zap.NewNop())
}

func buildGraph(t *testing.T) *aggregates.Graph {
	t.Helper()
	graph, err := aggregates.NewGraph("user123", sequentialIDs(), nil)
	require.NoError(t, err)

	marie, err := graph.AddPerson(entities.PersonData{
		FirstName: "Marie", LastName: "Dupont", Company: "Acme Corp", Comment: "met in Lyon",
		Proximity:  valueobjects.ProximityStrong,
		Categories: valueobjects.CategorySetOf(valueobjects.CategoryAdvisor, valueobjects.CategoryInvestor),
	})
	require.NoError(t, err)
	jean, err := graph.AddPerson(entities.PersonData{FirstName: "Jean", LastName: "Martin", Proximity: valueobjects.ProximityWeak})
	require.NoError(t, err)
	require.NoError(t, graph.SetPersonPosition(marie.ID(), valueobjects.Position{X: 12.5, Y: -40}))
	_, err = graph.AddRelation(marie.ID(), jean.ID(), valueobjects.ProximityMedium)
	require.NoError(t, err)
	return graph
}

func TestExportImportRoundTrip(t *testing.T) {
	svc := newService()
	graph := buildGraph(t)

	data, err := svc.Export(graph.Persons(), graph.Relations())
	require.NoError(t, err)

	parsed, err := svc.Decode(data, "user123")
	require.NoError(t, err)

	original := graph.Persons()
	require.Len(t, parsed.Persons, len(original))
	for i, want := range original {
		got := parsed.Persons[i]
		assert.Equal(t, want.ID(), got.ID())
		assert.Equal(t, want.FirstName(), got.FirstName())
		assert.Equal(t, want.LastName(), got.LastName())
		assert.Equal(t, want.Company(), got.Company())
		assert.Equal(t, want.Comment(), got.Comment())
		assert.Equal(t, want.Proximity(), got.Proximity())
		assert.True(t, want.Categories().Equals(got.Categories()))
		assert.Equal(t, want.Position(), got.Position())
	}

	relations := graph.Relations()
	require.Len(t, parsed.Relations, len(relations))
	assert.Equal(t, relations[0].ID(), parsed.Relations[0].ID())
	assert.Equal(t, relations[0].SourceID(), parsed.Relations[0].SourceID())
	assert.Equal(t, relations[0].TargetID(), parsed.Relations[0].TargetID())
	assert.Equal(t, relations[0].Proximity(), parsed.Relations[0].Proximity())
	assert.Empty(t, parsed.DroppedCategories)
}

func TestBuildWorkbook_Layout(t *testing.T) {
	graph := buildGraph(t)

	wb := BuildWorkbook(graph.Persons(), graph.Relations(), "|")

	persons, ok := wb.Table(SheetPersons)
	require.True(t, ok)
	assert.Equal(t, PersonColumns, persons.Header)
	assert.Equal(t, []string{"person-1", "Marie", "Dupont", "Acme Corp", "met in Lyon", "fort", "Investisseur|Advisor", "12.5", "-40"}, persons.Rows[0])
	assert.Equal(t, "", persons.Rows[1][7])

	relations, ok := wb.Table(SheetRelations)
	require.True(t, ok)
	assert.Equal(t, []string{"relation-3", "person-1", "person-2", "moyen"}, relations.Rows[0])
}

func TestParseWorkbook_Lenient(t *testing.T) {
	wb := &ports.Workbook{Tables: []ports.Table{
		{
			Name:   SheetPersons,
			Header: []string{"ID", "firstName", "Proximity", "categories", "x", "y"},
			Rows: [][]string{
				{"p1", "Marie", "FORT", "partenaire|Board", "1", "2"},
				{"p2", "", "proche", "", "3", "not a number"},
				{"", "Anon"},
				{"", "", ""},
			},
		},
		{
			Name:   SheetRelations,
			Header: []string{"id", "sourceId", "targetId"},
			Rows:   [][]string{{"r1", "p1"}},
		},
	}}

	parsed, err := ParseWorkbook(wb, "user123", "|", sequentialIDs(), nil)
	require.NoError(t, err)

	require.Len(t, parsed.Persons, 3)
	p1 := parsed.Persons[0]
	assert.Equal(t, valueobjects.ProximityStrong, p1.Proximity())
	assert.True(t, p1.Categories().Has(valueobjects.CategoryPartner))
	assert.Equal(t, 1, p1.Categories().Len())
	assert.Equal(t, "", p1.LastName())
	require.NotNil(t, p1.Position())
	assert.Equal(t, valueobjects.Position{X: 1, Y: 2}, *p1.Position())

	p2 := parsed.Persons[1]
	assert.Equal(t, "", p2.FirstName())
	assert.Equal(t, valueobjects.ProximityMedium, p2.Proximity())
	assert.Nil(t, p2.Position())

	assert.Equal(t, "person-1", parsed.Persons[2].ID())
	assert.Equal(t, []string{"Board"}, parsed.DroppedCategories)

	require.Len(t, parsed.Relations, 1)
	assert.Equal(t, "", parsed.Relations[0].TargetID())
	assert.Equal(t, valueobjects.ProximityMedium, parsed.Relations[0].Proximity())
}

func TestDecode_MissingTable(t *testing.T) {
	svc := newService()

	tests := []struct {
		name   string
		tables []ports.Table
		code   string
	}{
		{name: "missing relations", tables: []ports.Table{{Name: SheetPersons}}, code: "MISSING_RELATIONS_TABLE"},
		{name: "missing persons", tables: []ports.Table{{Name: SheetRelations}}, code: "MISSING_PERSONS_TABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(ports.Workbook{Tables: tt.tables})
			require.NoError(t, err)

			parsed, err := svc.Decode(data, "user123")

			assert.Nil(t, parsed)
			require.True(t, pkgerrors.IsDocumentFormat(err))
			assert.Equal(t, tt.code, pkgerrors.GetAppError(err).Code)
		})
	}
}

func TestDecode_Unreadable(t *testing.T) {
	svc := newService()

	_, err := svc.Decode([]byte("not a workbook"), "user123")
	assert.True(t, pkgerrors.IsDocumentFormat(err))

	_, err = svc.Decode(nil, "user123")
	assert.True(t, pkgerrors.IsDocumentFormat(err))
}

func TestNewImportReport(t *testing.T) {
	parsed := &Parsed{DroppedCategories: []string{"Board", "Board", "VIP"}}
	result := aggregates.ReplaceResult{
		DroppedRelationIDs: []string{"r9"},
		DuplicatePersonIDs: []string{"p1"},
	}

	report := NewImportReport(parsed, result, 2, 1)

	assert.Equal(t, 2, report.Persons)
	assert.Equal(t, 1, report.Relations)
	assert.Equal(t, []string{"r9"}, report.DroppedRelations)
	assert.Equal(t, []string{"Board", "VIP"}, report.DroppedCategories)
	assert.Equal(t, []string{"p1"}, report.DuplicateIDs)

	empty := NewImportReport(&Parsed{}, aggregates.ReplaceResult{}, 0, 0)
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"persons":0,"relations":0,"droppedRelations":[],"droppedCategories":[],"duplicateIds":[]}`, string(data))
}
