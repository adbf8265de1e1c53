package csv_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shapestone/streamcsv/pkg/csv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersDoc = "id,item,qty,price,active,placed\n" +
	"6ba7b810-9dad-11d1-80b4-00c04fd430c8,widget,3,9.99,yes,2024-06-01T10:30:00Z\n" +
	"6ba7b811-9dad-11d1-80b4-00c04fd430c8,gadget,1,24.50,no,2024-06-02T08:00:00Z\n"

func TestParseTable(t *testing.T) {
	table, err := csv.ParseTable([]byte(ordersDoc))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "item", "qty", "price", "active", "placed"}, table.Headers())
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 2, table.Column("QTY"), "column lookup is case-insensitive")
	assert.Equal(t, -1, table.Column("missing"))

	row, ok := table.Row(0)
	require.True(t, ok)
	assert.Equal(t, "widget", row.String("item"))

	qty, err := row.Int("qty")
	require.NoError(t, err)
	assert.Equal(t, int64(3), qty)

	price, err := row.Float("price")
	require.NoError(t, err)
	assert.Equal(t, 9.99, price)

	active, err := row.Bool("active")
	require.NoError(t, err)
	assert.True(t, active)

	placed, err := row.Time("placed", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), placed)

	id, err := row.UUID("id")
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), id)

	_, ok = table.Row(2)
	assert.False(t, ok, "row index past the data records")
	assert.Len(t, table.Rows(), 2)
}

func TestRowErrors(t *testing.T) {
	table, err := csv.ParseTable([]byte("name,age\nAda,abc\n"))
	require.NoError(t, err)
	row, ok := table.Row(0)
	require.True(t, ok)

	_, err = row.Int("age")
	var cerr *csv.ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, int64(1), cerr.Record)
	assert.Equal(t, "age", cerr.Column)
	assert.Equal(t, "abc", cerr.Value)

	_, err = row.Int("height")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no column "height"`)

	assert.Equal(t, "", row.String("height"), "String on a missing column is empty")
}

func TestRowFieldAccess(t *testing.T) {
	table := csv.NewTable().
		SetHeaders([]string{"a", "b"}).
		AddRecord([]string{"1", "2"})

	row, ok := table.Row(0)
	require.True(t, ok)
	assert.Equal(t, 2, row.Len())

	v, ok := row.Get(1)
	require.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = row.Get(2)
	assert.False(t, ok)

	fields := row.Fields()
	fields[0] = "mutated"
	again, _ := row.Get(0)
	assert.Equal(t, "1", again, "Fields returns a copy")
}

func TestTableBuilderRender(t *testing.T) {
	table := csv.NewTable().
		SetHeaders([]string{"name", "note"}).
		AddRecord([]string{"Ada", "said \"hi\""}).
		AddRecord([]string{"Bob", "plain"})

	out, err := table.CSV()
	require.NoError(t, err)
	assert.Equal(t, "name,note\nAda,\"said \"\"hi\"\"\"\nBob,plain\n", out)

	back, err := csv.ParseTable([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, table.Headers(), back.Headers())
	assert.Equal(t, table.Len(), back.Len())
	row, _ := back.Row(0)
	assert.Equal(t, `said "hi"`, row.String("note"))
}

func TestTableDuplicateHeaders(t *testing.T) {
	table, err := csv.ParseTable([]byte("x,x\nfirst,second\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Column("x"), "first duplicate wins")
	row, _ := table.Row(0)
	assert.Equal(t, "first", row.String("x"))
}

func TestRowValueConverters(t *testing.T) {
	conv := csv.NewConverters().
		Register("qty", csv.IntConverter(0)).
		Register("price", csv.NullableConverter(csv.FloatConverter()))

	table, err := csv.ParseTable([]byte("item,qty,price\nwidget,3,NULL\n"))
	require.NoError(t, err)
	table.WithConverters(conv)

	row, ok := table.Row(0)
	require.True(t, ok)

	qty, err := row.Value("qty")
	require.NoError(t, err)
	assert.Equal(t, int64(3), qty)

	price, err := row.Value("price")
	require.NoError(t, err)
	assert.Nil(t, price)

	item, err := row.Value("item")
	require.NoError(t, err)
	assert.Equal(t, "widget", item, "unregistered column falls back to the raw string")
}

func TestTableRenderOptions(t *testing.T) {
	table := csv.NewTable().
		SetHeaders([]string{"a", "b"}).
		AddRecord([]string{"1", "2"})

	opts := csv.DefaultWriterOptions()
	opts.UseCRLF = true
	out, err := table.Render(opts)
	require.NoError(t, err)
	assert.Equal(t, "a,b\r\n1,2\r\n", string(out))
}
