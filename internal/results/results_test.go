package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transformar/console/internal/types"
)

func entry(label, result string) types.ProcessingResult {
	return types.ProcessingResult{FileLabel: label, TemplateID: "tpl", Result: json.RawMessage(result)}
}

func TestIsTabular(t *testing.T) {
	cases := map[string]bool{
		`[{"a":1},{"b":2}]`:  true,
		`[]`:                 true,
		`[1,2,3]`:            false,
		`[{"a":1},2]`:        false,
		`[[{"a":1}]]`:        false,
		`{"a":1}`:            false,
		`"text"`:             false,
		`null`:               false,
		``:                   false,
		`[{"a":1}`:           false,
		`[{"a":{"b":[1]}}]`:  true,
		`  [ {"x": null} ] `: true,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsTabular(json.RawMessage(in)), "payload %q", in)
	}
}

func TestToCSVEmpty(t *testing.T) {
	assert.Equal(t, "", ToCSV(nil))
	assert.Equal(t, "", ToCSV([]Row{}))
}

func TestToCSVUnionOfKeys(t *testing.T) {
	rows := Flatten([]types.ProcessingResult{entry("x", `[{"a":1},{"b":2}]`)})
	assert.Equal(t, "a,b\n1,\n,2", ToCSV(rows))
}

func TestColumnsFirstAppearanceOrder(t *testing.T) {
	rows, ok := Rows(json.RawMessage(`[{"z":1,"a":2},{"m":3,"z":4}]`))
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, Columns(rows))
	assert.Equal(t, "z,a,m\n1,2,\n4,,3", ToCSV(rows))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"Hello, ""World"""`, Quote(`Hello, "World"`))
	assert.Equal(t, `"a;b"`, Quote("a;b"))
	assert.Equal(t, "\"line\nbreak\"", Quote("line\nbreak"))
	assert.Equal(t, "plain", Quote("plain"))
}

func TestCellValues(t *testing.T) {
	rows, ok := Rows(json.RawMessage(`[{"s":"Hello, \"World\"","n":10.50,"b":true,"nil":null,"o":{"k": [1, 2]}}]`))
	require.True(t, ok)
	out := ToCSV(rows)
	assert.Equal(t, "s,n,b,nil,o\n"+`"Hello, ""World""",10.50,true,,"{""k"":[1,2]}"`, out)
}

func TestFlattenSkipsNonTabular(t *testing.T) {
	rows := Flatten([]types.ProcessingResult{
		entry("a", `[{"id":1}]`),
		entry("b", `{"summary":"x"}`),
		entry("c", `[{"id":2,"extra":"y"}]`),
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "id,extra\n1,\n2,y", ToCSV(rows))
}

func TestExportNothingToExport(t *testing.T) {
	dir := t.TempDir()
	_, err := Export(dir, []types.ProcessingResult{entry("a", `[1,2,3]`)}, time.Now())
	assert.ErrorIs(t, err, ErrNothingToExport)

	files, _ := os.ReadDir(dir)
	assert.Empty(t, files)
}

func TestExportWritesTimestampedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := Export(dir, []types.ProcessingResult{entry("a", `[{"a":1},{"b":2}]`)}, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "resultados_20260304-050607.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\n,2", string(data))
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, "null", Pretty(nil))
}

func TestEntries(t *testing.T) {
	run := &types.Run{Results: []types.ProcessingResult{
		entry("texto_libre.txt", `[{"total":"10"}]`),
		entry("doc.pdf", `[1,2]`),
	}}
	es := Entries(run)
	require.Len(t, es, 2)

	assert.True(t, es[0].Tabular)
	assert.Equal(t, "texto_libre.txt", es[0].FileLabel)
	assert.Equal(t, []string{"total"}, es[0].Columns)
	assert.Equal(t, [][]string{{"10"}}, es[0].Rows)

	assert.False(t, es[1].Tabular)
	assert.Equal(t, "[\n  1,\n  2\n]", es[1].Text)

	assert.Nil(t, Entries(nil))
}
