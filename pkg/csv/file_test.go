package csv_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shapestone/streamcsv/pkg/csv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	return name
}

func TestParseFile(t *testing.T) {
	name := writeTempCSV(t, "name,age\nAlice,30\nBob,25\n")

	records, err := csv.ParseFile(name)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name", "age"}, {"Alice", "30"}, {"Bob", "25"}}, records)
}

func TestParseFileMissing(t *testing.T) {
	_, err := csv.ParseFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestParseFileEmpty(t *testing.T) {
	name := writeTempCSV(t, "")
	records, err := csv.ParseFile(name)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeFile(t *testing.T) {
	name := writeTempCSV(t, "name,age,email\nAlice,30,alice@example.com\nBob,25,\n")

	people, err := csv.DecodeFile[employee](name)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, employee{Name: "Alice", Age: 30, Email: "alice@example.com"}, people[0])
	assert.Equal(t, employee{Name: "Bob", Age: 25}, people[1])
}

func TestDecodeFileWithOptions(t *testing.T) {
	name := writeTempCSV(t, "name;age;email\nAlice;30;a@b.c\n")

	opts := csv.DefaultReaderOptions()
	opts.Comma = ';'
	people, err := csv.DecodeFileWithOptions[employee](name, opts)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Alice", people[0].Name)
}

func TestValidateFile(t *testing.T) {
	good := writeTempCSV(t, "a,b\nc,d\n")
	assert.NoError(t, csv.ValidateFile(good, csv.DefaultReaderOptions()))

	bad := writeTempCSV(t, "a,b\n\"open,d\n")
	err := csv.ValidateFile(bad, csv.DefaultReaderOptions())
	assert.ErrorIs(t, err, csv.ErrUnterminatedQuote)
}
