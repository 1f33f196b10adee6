package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/erp/ledger/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"add boleto barcode":    "add_boleto_barcode",
		"Add-Credit--Limit":     "add_credit_limit",
		"  index receivables  ": "index_receivables",
		"drop!@# legacy":        "drop_legacy",
		"_leading_":             "leading",
		"":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, slugify(in), in)
	}
}

func TestParseFileName(t *testing.T) {
	v, name, dir, ok := parseFileName("000002_outbox_events.up.sql")
	require.True(t, ok)
	assert.Equal(t, uint(2), v)
	assert.Equal(t, "outbox_events", name)
	assert.Equal(t, "up", dir)

	for _, bad := range []string{"README.md", "000001_schema.sql", "schema.up.sql", "x_schema.down.sql"} {
		_, _, _, ok := parseFileName(bad)
		assert.False(t, ok, bad)
	}
}

func TestCreate_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := Create(dir, "ledger schema", now)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_ledger_schema.up.sql"), first.UpPath)

	second, err := Create(dir, "Index boletos", now)
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)

	body, err := os.ReadFile(second.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- index_boletos (down)")
	assert.Contains(t, string(body), "2024-05-01T10:00:00Z")

	listed, err := List(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, Migration{Version: 2, Name: "index_boletos", HasDown: true}, listed[1])
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	_, err := Create(t.TempDir(), "!!!", time.Now())
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	fsys := fstest.MapFS{
		"000010_late.up.sql":     {},
		"000002_early.up.sql":    {},
		"000002_early.down.sql":  {},
		"notes.txt":              {},
		"nested/000003_x.up.sql": {},
	}
	got, err := List(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Version: 2, Name: "early", HasDown: true},
		{Version: 10, Name: "late"},
	}, got)

	missing, err := List(os.DirFS(filepath.Join(t.TempDir(), "nope")))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	got, err := List(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for i, m := range got {
		assert.Equal(t, uint(i+1), m.Version, "versions have no gaps")
		assert.True(t, m.HasDown, "%06d_%s has no down migration", m.Version, m.Name)
	}
}
