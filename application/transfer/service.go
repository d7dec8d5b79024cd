package transfer

import (
	"relmap/application/ports"
	"relmap/domain/config"
	"relmap/domain/core/aggregates"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"

	"go.uber.org/zap"
)

// ImportReport describes what an import kept and what it had to discard
type ImportReport struct {
	Persons           int      `json:"persons"`
	Relations         int      `json:"relations"`
	DroppedRelations  []string `json:"droppedRelations"`
	DroppedCategories []string `json:"droppedCategories"`
	DuplicateIDs      []string `json:"duplicateIds"`
}

// NewImportReport combines parse and replace outcomes
func NewImportReport(parsed *Parsed, result aggregates.ReplaceResult, persons, relations int) ImportReport {
	report := ImportReport{
		Persons:           persons,
		Relations:         relations,
		DroppedRelations:  nonNil(result.DroppedRelationIDs),
		DroppedCategories: nonNil(unique(parsed.DroppedCategories)),
	}
	report.DuplicateIDs = append(report.DuplicateIDs, result.DuplicatePersonIDs...)
	report.DuplicateIDs = nonNil(append(report.DuplicateIDs, result.DuplicateRelationIDs...))
	return report
}

// Service converts maps to and from tabular documents
type Service struct {
	codec  ports.WorkbookCodec
	ids    valueobjects.IDGenerator
	config *config.DomainConfig
	logger *zap.Logger
}

// NewService creates a transfer service
func NewService(codec ports.WorkbookCodec, ids valueobjects.IDGenerator, cfg *config.DomainConfig, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if ids == nil {
		ids = valueobjects.NewUUIDGenerator()
	}
	return &Service{codec: codec, ids: ids, config: cfg, logger: logger}
}

// ContentType of exported documents
func (s *Service) ContentType() string {
	return s.codec.ContentType()
}

// Extension of exported documents, without the dot
func (s *Service) Extension() string {
	return s.codec.Extension()
}

// Export encodes persons and relations into a document
func (s *Service) Export(persons []*entities.Person, relations []*entities.Relation) ([]byte, error) {
	workbook := BuildWorkbook(persons, relations, s.config.CategoryDelimiter)

	data, err := s.codec.Encode(workbook)
	if err != nil {
		s.logger.Error("Failed to encode document", zap.Error(err))
		return nil, pkgerrors.NewInternalError("the document could not be generated").WithCause(err)
	}

	s.logger.Debug("Map exported",
		zap.Int("persons", len(persons)),
		zap.Int("relations", len(relations)),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

// Decode parses a document. Nothing is applied to any graph here.
func (s *Service) Decode(data []byte, ownerID string) (*Parsed, error) {
	if len(data) == 0 {
		return nil, pkgerrors.NewDocumentFormatError("the document is empty")
	}

	workbook, err := s.codec.Decode(data)
	if err != nil {
		s.logger.Warn("Failed to decode document", zap.Error(err))
		return nil, pkgerrors.NewDocumentFormatError("the document could not be read").WithCause(err)
	}

	return ParseWorkbook(workbook, ownerID, s.config.CategoryDelimiter, s.ids, &PrefixConfig{
		PersonPrefix:   s.config.PersonIDPrefix,
		RelationPrefix: s.config.RelationIDPrefix,
	})
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
