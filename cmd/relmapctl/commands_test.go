package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"relmap/application/notify"
	"relmap/application/session"
	"relmap/application/transfer"
	"relmap/domain/core/entities"
	"relmap/domain/core/valueobjects"
	"relmap/infrastructure/persistence/memory"
	"relmap/infrastructure/tabular/excel"
	"relmap/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryOpener hands out a fresh manager per command over one shared store
func memoryOpener(tables *memory.TableService) opener {
	return func(ctx context.Context) (sessions, func(), error) {
		logger := zap.NewNop()
		manager := session.NewManager(session.Dependencies{
			Tables:   tables,
			Notifier: notify.NewInbox(10),
			Transfer: transfer.NewService(excel.NewCodec(), valueobjects.NewUUIDGenerator(), nil, logger),
			IDs:      valueobjects.NewUUIDGenerator(),
			Logger:   logger,
		}, time.Minute, logger)
		release := func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = manager.Stop(stopCtx)
		}
		return manager, release, nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, tables *memory.TableService, owner string) {
	t.Helper()
	sources, release, err := memoryOpener(tables)(context.Background())
	require.NoError(t, err)
	defer release()

	s, err := sources.Get(context.Background(), owner)
	require.NoError(t, err)
	marie, err := s.AddPerson(entities.PersonData{
		FirstName:  "Marie",
		LastName:   "Dupont",
		Proximity:  valueobjects.ProximityStrong,
		Categories: valueobjects.CategorySetOf(valueobjects.CategoryInvestor),
	})
	require.NoError(t, err)
	jean, err := s.AddPerson(entities.PersonData{FirstName: "Jean", LastName: "Martin", Proximity: valueobjects.ProximityWeak})
	require.NoError(t, err)
	_, err = s.AddRelation(marie.ID(), jean.ID(), valueobjects.ProximityMedium)
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))
}

func TestStats(t *testing.T) {
	tables := memory.NewTableService()
	seed(t, tables, "user-1")

	out, err := run(t, memoryOpener(tables), "stats", "--owner", "user-1")
	require.NoError(t, err)

	var stats Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Persons)
	assert.Equal(t, 1, stats.Relations)
	assert.Equal(t, 1, stats.Categories[string(valueobjects.CategoryInvestor)])
	assert.Equal(t, 1, stats.Proximities[string(valueobjects.ProximityMedium)])
}

func TestExportResetImportRoundTrip(t *testing.T) {
	tables := memory.NewTableService()
	seed(t, tables, "user-1")
	open := memoryOpener(tables)
	path := filepath.Join(t.TempDir(), "map.xlsx")

	_, err := run(t, open, "export", "--owner", "user-1", "--out", path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = run(t, open, "reset", "--owner", "user-1", "--yes")
	require.NoError(t, err)
	out, err := run(t, open, "stats", "--owner", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"persons": 0`)

	out, err = run(t, open, "import", "--owner", "user-1", "--in", path)
	require.NoError(t, err)
	var report transfer.ImportReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Persons)
	assert.Equal(t, 1, report.Relations)
}

func TestCommandErrors(t *testing.T) {
	open := memoryOpener(memory.NewTableService())
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing owner", args: []string{"stats"}, want: "--owner is required"},
		{name: "reset without confirmation", args: []string{"reset", "--owner", "u"}, want: "--yes"},
		{name: "import without file", args: []string{"import", "--owner", "u"}, want: "--in is required"},
		{name: "import unreadable file", args: []string{"import", "--owner", "u", "--in", "/does/not/exist.xlsx"}, want: "read /does/not/exist.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, open, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestTokenIsAcceptedByValidator(t *testing.T) {
	out, err := run(t, nil, "token", "user-9", "--secret", "s3cret", "--issuer", "relmap", "--email", "lea@example.com")
	require.NoError(t, err)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "s3cret", Issuer: "relmap"})
	require.NoError(t, err)
	principal, err := validator.Authenticate(context.Background(), string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, "user-9", principal.UserID)
	assert.Equal(t, "lea@example.com", principal.Email)
}

func TestSchemaUsesTableNames(t *testing.T) {
	out, err := run(t, nil, "schema", "--persons-table", "crm_persons", "--relations-table", "crm_relations")
	require.NoError(t, err)
	assert.Contains(t, out, "create table if not exists crm_persons (")
	assert.Contains(t, out, "primary key (owner_id, id)")

	_, err = run(t, nil, "schema", "--persons-table", "x; drop")
	assert.ErrorContains(t, err, "invalid table name")
}
