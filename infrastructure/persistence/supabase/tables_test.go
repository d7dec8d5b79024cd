package supabase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"relmap/application/ports"
)

func TestEndpointFilter(t *testing.T) {
	assert.Equal(t,
		`source_id.eq."person-1",target_id.eq."person-1"`,
		endpointFilter("person-1"))
	assert.Equal(t,
		`source_id.eq."a\"b",target_id.eq."a\"b"`,
		endpointFilter(`a"b`))
}

func TestPayloadOf(t *testing.T) {
	company := "Acme"
	var cleared *string

	out := payloadOf(ports.Fields{
		ports.ColumnCompany:   &company,
		ports.ColumnComment:   cleared,
		ports.ColumnProximity: "fort",
	})

	assert.Equal(t, "Acme", out[ports.ColumnCompany])
	v, ok := out[ports.ColumnComment]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "fort", out[ports.ColumnProximity])
}

func TestSchemaKeysRowsByOwner(t *testing.T) {
	ddl, err := Schema("persons", "relations")
	assert.NoError(t, err)

	assert.Equal(t, 2, strings.Count(ddl, "primary key (owner_id, id)"))
	assert.Contains(t, ddl, "create table if not exists relations (")
	assert.Contains(t, ddl, "create policy persons_owner on persons")
	assert.Equal(t, "owner_id,id", conflictTarget)
}

func TestSchemaRejectsUnsafeTableNames(t *testing.T) {
	tests := []string{"", "Persons", "persons; drop table x", "1persons", "per-sons"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Schema(name, "relations")
			assert.Error(t, err)
		})
	}
}
