package valueobjects

import (
	"github.com/google/uuid"
)

// IDGenerator produces identifiers that are unique for the process lifetime
type IDGenerator interface {
	Generate(prefix string) string
}

// UUIDGenerator generates random v4 UUIDs, optionally prefixed
type UUIDGenerator struct{}

// NewUUIDGenerator creates the default generator
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// Generate returns "<prefix>-<uuid>", or a bare uuid when prefix is empty
func (UUIDGenerator) Generate(prefix string) string {
	id := uuid.New().String()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// GeneratorFunc adapts a function to IDGenerator
type GeneratorFunc func(prefix string) string

func (f GeneratorFunc) Generate(prefix string) string {
	return f(prefix)
}
