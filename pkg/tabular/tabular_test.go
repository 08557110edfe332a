package tabular_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgraph/lpgraph/pkg/tabular"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceReadsRecords(t *testing.T) {
	path := writeTemp(t, "aid,name,score\na1,Alpha,10\na2,Beta,\n")

	src := tabular.NewCSVSource()
	records, err := src.Open(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"aid", "name", "score"}, src.Columns())
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0]["aid"])
	assert.Equal(t, "", records[1]["score"])
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := tabular.NewCSVSource()
	_, err := src.Open("/nonexistent/path.csv")
	require.Error(t, err)
}

func TestCSVSourceEmptyFileErrors(t *testing.T) {
	path := writeTemp(t, "")
	src := tabular.NewCSVSource()
	_, err := src.Open(path)
	require.Error(t, err)
}

func TestForFormat(t *testing.T) {
	csvSrc, err := tabular.ForFormat("")
	require.NoError(t, err)
	assert.IsType(t, &tabular.CSVSource{}, csvSrc)

	tsvSrc, err := tabular.ForFormat("tsv")
	require.NoError(t, err)
	assert.IsType(t, &tabular.CSVSource{}, tsvSrc)

	_, err = tabular.ForFormat("parquet")
	require.Error(t, err)
}
