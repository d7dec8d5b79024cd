package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"relmap/domain/config"
	"relmap/domain/core/valueobjects"
	pkgerrors "relmap/pkg/errors"
)

// PersonData holds the user-editable fields of a person
type PersonData struct {
	FirstName  string
	LastName   string
	Company    string
	Comment    string
	Proximity  valueobjects.Proximity
	Categories valueobjects.CategorySet
}

// Person is a node of the relationship map
type Person struct {
	id         string
	ownerID    string
	firstName  string
	lastName   string
	company    string
	comment    string
	proximity  valueobjects.Proximity
	categories valueobjects.CategorySet
	position   *valueobjects.Position
	createdAt  time.Time
	updatedAt  time.Time
}

// NewPerson validates data and creates a person without a position
func NewPerson(id, ownerID string, data PersonData, cfg *config.DomainConfig) (*Person, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("person id cannot be empty")
	}
	data, err := normalizePersonData(data, cfg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Person{
		id:         id,
		ownerID:    ownerID,
		firstName:  data.FirstName,
		lastName:   data.LastName,
		company:    data.Company,
		comment:    data.Comment,
		proximity:  data.Proximity,
		categories: data.Categories,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructPerson rebuilds a person from stored or imported data.
// Names are not required here: rows loaded from a store or a document are taken as they are.
func ReconstructPerson(
	id, ownerID string,
	data PersonData,
	position *valueobjects.Position,
	createdAt, updatedAt time.Time,
) (*Person, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("person id cannot be empty")
	}
	if !data.Proximity.IsValid() {
		data.Proximity = valueobjects.DefaultProximity
	}
	if position != nil {
		position = position.Ptr()
	}
	return &Person{
		id:         id,
		ownerID:    ownerID,
		firstName:  data.FirstName,
		lastName:   data.LastName,
		company:    data.Company,
		comment:    data.Comment,
		proximity:  data.Proximity,
		categories: data.Categories,
		position:   position,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}, nil
}

// Update replaces every mutable field except the position
func (p *Person) Update(data PersonData, cfg *config.DomainConfig) error {
	data, err := normalizePersonData(data, cfg)
	if err != nil {
		return err
	}
	p.firstName = data.FirstName
	p.lastName = data.LastName
	p.company = data.Company
	p.comment = data.Comment
	p.proximity = data.Proximity
	p.categories = data.Categories
	p.updatedAt = time.Now().UTC()
	return nil
}

// MoveTo sets the canvas position
func (p *Person) MoveTo(position valueobjects.Position) {
	p.position = position.Ptr()
	p.updatedAt = time.Now().UTC()
}

// Clone returns an independent copy
func (p *Person) Clone() *Person {
	c := *p
	if p.position != nil {
		c.position = p.position.Ptr()
	}
	return &c
}

func (p *Person) ID() string                           { return p.id }
func (p *Person) OwnerID() string                      { return p.ownerID }
func (p *Person) FirstName() string                    { return p.firstName }
func (p *Person) LastName() string                     { return p.lastName }
func (p *Person) Company() string                      { return p.company }
func (p *Person) Comment() string                      { return p.comment }
func (p *Person) Proximity() valueobjects.Proximity    { return p.proximity }
func (p *Person) Categories() valueobjects.CategorySet { return p.categories }
func (p *Person) CreatedAt() time.Time                 { return p.createdAt }
func (p *Person) UpdatedAt() time.Time                 { return p.updatedAt }

// Position returns the canvas position, nil until first placed
func (p *Person) Position() *valueobjects.Position {
	if p.position == nil {
		return nil
	}
	return p.position.Ptr()
}

// FullName joins first and last name
func (p *Person) FullName() string {
	return strings.TrimSpace(p.firstName + " " + p.lastName)
}

// Data returns the editable fields
func (p *Person) Data() PersonData {
	return PersonData{
		FirstName:  p.firstName,
		LastName:   p.lastName,
		Company:    p.company,
		Comment:    p.comment,
		Proximity:  p.proximity,
		Categories: p.categories,
	}
}

func normalizePersonData(data PersonData, cfg *config.DomainConfig) (PersonData, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	data.FirstName = strings.TrimSpace(data.FirstName)
	data.LastName = strings.TrimSpace(data.LastName)
	data.Company = strings.TrimSpace(data.Company)
	data.Comment = strings.TrimSpace(data.Comment)

	if data.FirstName == "" {
		return data, pkgerrors.NewValidationError("first name is required")
	}
	if data.LastName == "" {
		return data, pkgerrors.NewValidationError("last name is required")
	}
	if utf8.RuneCountInString(data.FirstName) > cfg.MaxNameLength ||
		utf8.RuneCountInString(data.LastName) > cfg.MaxNameLength {
		return data, pkgerrors.NewValidationError(fmt.Sprintf("names must be at most %d characters", cfg.MaxNameLength))
	}
	if utf8.RuneCountInString(data.Company) > cfg.MaxCompanyLength {
		return data, pkgerrors.NewValidationError(fmt.Sprintf("company must be at most %d characters", cfg.MaxCompanyLength))
	}
	if utf8.RuneCountInString(data.Comment) > cfg.MaxCommentLength {
		return data, pkgerrors.NewValidationError(fmt.Sprintf("comment must be at most %d characters", cfg.MaxCommentLength))
	}
	if !data.Proximity.IsValid() {
		return data, pkgerrors.NewValidationError("proximity must be one of: fort, moyen, faible")
	}
	return data, nil
}
