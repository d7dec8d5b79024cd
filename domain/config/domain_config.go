package config

import "fmt"

// DomainConfig holds the configurable rules of a relationship map
type DomainConfig struct {
	// Map constraints
	MaxPersons   int
	MaxRelations int

	// Identifier prefixes handed to the id generator
	PersonIDPrefix   string
	RelationIDPrefix string

	// Field constraints
	MaxNameLength    int
	MaxCompanyLength int
	MaxCommentLength int

	// Relation policy. Self-loops and parallel relations are accepted by default.
	AllowSelfRelations      bool
	AllowDuplicateRelations bool

	// CategoryDelimiter joins a person's categories into one tabular cell
	CategoryDelimiter string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxPersons:   5000,
		MaxRelations: 25000,

		PersonIDPrefix:   "person",
		RelationIDPrefix: "relation",

		MaxNameLength:    200,
		MaxCompanyLength: 200,
		MaxCommentLength: 5000,

		AllowSelfRelations:      true,
		AllowDuplicateRelations: true,

		CategoryDelimiter: "|",
	}
}

// DevelopmentDomainConfig returns a more permissive configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxPersons = 100000
	config.MaxRelations = 500000
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is usable
func (c *DomainConfig) Validate() error {
	if c.MaxPersons <= 0 || c.MaxRelations <= 0 {
		return fmt.Errorf("map limits must be positive")
	}
	if c.CategoryDelimiter == "" {
		return fmt.Errorf("category delimiter cannot be empty")
	}
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("max name length must be positive")
	}
	return nil
}
