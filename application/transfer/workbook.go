package transfer

import (
	"strconv"
	"strings"
	"time"

	"relmap/application/ports"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"
)

// Sheet names of an exported map
const (
	SheetPersons   = "Persons"
	SheetRelations = "Relations"
)

// Column headers, in export order
var (
	PersonColumns   = []string{"id", "firstName", "lastName", "company", "comment", "proximity", "categories", "x", "y"}
	RelationColumns = []string{"id", "sourceId", "targetId", "proximity"}
)

// Parsed is the content read from a workbook, before it replaces a graph
type Parsed struct {
	Persons           []*entities.Person
	Relations         []*entities.Relation
	DroppedCategories []string
}

// BuildWorkbook encodes persons and relations as two named tables
func BuildWorkbook(persons []*entities.Person, relations []*entities.Relation, delimiter string) *ports.Workbook {
	personRows := make([][]string, 0, len(persons))
	for _, p := range persons {
		x, y := "", ""
		if pos := p.Position(); pos != nil {
			x = formatFloat(pos.X)
			y = formatFloat(pos.Y)
		}
		personRows = append(personRows, []string{
			p.ID(),
			p.FirstName(),
			p.LastName(),
			p.Company(),
			p.Comment(),
			p.Proximity().String(),
			p.Categories().Join(delimiter),
			x,
			y,
		})
	}

	relationRows := make([][]string, 0, len(relations))
	for _, r := range relations {
		relationRows = append(relationRows, []string{
			r.ID(),
			r.SourceID(),
			r.TargetID(),
			r.Proximity().String(),
		})
	}

	return &ports.Workbook{
		Tables: []ports.Table{
			{Name: SheetPersons, Header: PersonColumns, Rows: personRows},
			{Name: SheetRelations, Header: RelationColumns, Rows: relationRows},
		},
	}
}

// ParseWorkbook reads both tables. A missing table aborts with a DocumentFormatError.
// Missing cells become empty strings, an unknown proximity becomes moyen, and rows
// without an id get a fresh one from ids.
func ParseWorkbook(
	workbook *ports.Workbook,
	ownerID string,
	delimiter string,
	ids valueobjects.IDGenerator,
	cfg *PrefixConfig,
) (*Parsed, error) {
	if cfg == nil {
		cfg = &PrefixConfig{PersonPrefix: "person", RelationPrefix: "relation"}
	}

	personTable, ok := workbook.Table(SheetPersons)
	if !ok {
		return nil, pkgerrors.NewDocumentFormatError("the document has no \"" + SheetPersons + "\" table").
			WithCode("MISSING_PERSONS_TABLE")
	}
	relationTable, ok := workbook.Table(SheetRelations)
	if !ok {
		return nil, pkgerrors.NewDocumentFormatError("the document has no \"" + SheetRelations + "\" table").
			WithCode("MISSING_RELATIONS_TABLE")
	}

	now := time.Now().UTC()
	parsed := &Parsed{}

	pc := newColumns(personTable.Header)
	for _, row := range personTable.Rows {
		if isBlank(row) {
			continue
		}

		id := pc.get(row, "id")
		if id == "" {
			id = ids.Generate(cfg.PersonPrefix)
		}

		categories, unknown := valueobjects.ParseCategoryList(pc.get(row, "categories"), delimiter)
		parsed.DroppedCategories = append(parsed.DroppedCategories, unknown...)

		var position *valueobjects.Position
		if x, errX := strconv.ParseFloat(pc.get(row, "x"), 64); errX == nil {
			if y, errY := strconv.ParseFloat(pc.get(row, "y"), 64); errY == nil {
				if pos, err := valueobjects.NewPosition(x, y); err == nil {
					position = &pos
				}
			}
		}

		person, err := entities.ReconstructPerson(id, ownerID, entities.PersonData{
			FirstName:  pc.get(row, "firstName"),
			LastName:   pc.get(row, "lastName"),
			Company:    pc.get(row, "company"),
			Comment:    pc.get(row, "comment"),
			Proximity:  valueobjects.ProximityOrDefault(pc.get(row, "proximity")),
			Categories: categories,
		}, position, now, now)
		if err != nil {
			return nil, err
		}
		parsed.Persons = append(parsed.Persons, person)
	}

	rc := newColumns(relationTable.Header)
	for _, row := range relationTable.Rows {
		if isBlank(row) {
			continue
		}

		id := rc.get(row, "id")
		if id == "" {
			id = ids.Generate(cfg.RelationPrefix)
		}

		relation, err := entities.ReconstructRelation(
			id,
			ownerID,
			rc.get(row, "sourceId"),
			rc.get(row, "targetId"),
			valueobjects.ProximityOrDefault(rc.get(row, "proximity")),
			now, now,
		)
		if err != nil {
			return nil, err
		}
		parsed.Relations = append(parsed.Relations, relation)
	}

	return parsed, nil
}

// PrefixConfig names the id prefixes used for rows without an id
type PrefixConfig struct {
	PersonPrefix   string
	RelationPrefix string
}

// columns maps header names to cell positions, ignoring case and spacing
type columns map[string]int

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := c[key]; !exists {
			c[key] = i
		}
	}
	return c
}

func (c columns) get(row []string, name string) string {
	i, ok := c[strings.ToLower(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
