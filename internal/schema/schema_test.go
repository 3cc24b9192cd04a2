package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHasBuiltins(t *testing.T) {
	for _, name := range []string{"customers", "contacts", "leads", "products"} {
		tbl, ok := Default().Get(name)
		require.True(t, ok, "missing builtin table %s", name)
		assert.NoError(t, tbl.Validate())
	}

	products, _ := Default().Get("products")
	assert.Empty(t, products.URLEndpoint)
}

func TestCatalogAdd_RejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	tbl := Table{Name: "t", Columns: []Column{{Name: "a", DataType: TypeText}}}

	require.NoError(t, c.Add(tbl))
	assert.Error(t, c.Add(tbl))

	dup := Table{Name: "u", Columns: []Column{
		{Name: "a", DataType: TypeText},
		{Name: "a", DataType: TypeInt},
	}}
	err := c.Add(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column")
}

func TestCatalogAdd_FillsDisplayNames(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Add(Table{Name: "t", Columns: []Column{{Name: "a", DataType: TypeText}}}))

	tbl, _ := c.Get("t")
	assert.Equal(t, "t", tbl.DisplayName)
	assert.Equal(t, "a", tbl.Columns[0].DisplayName)
}

func TestLoad(t *testing.T) {
	src := `
tables:
  - name: orders
    displayName: Orders
    urlEndpoint: /api/orders
    columns:
      - name: order_id
        displayName: Order ID
        dataType: varchar
        required: true
        maxLength: 32
      - name: amount
        dataType: DECIMAL
`
	c, err := Load(strings.NewReader(src))
	require.NoError(t, err)

	tbl, ok := c.Get("orders")
	require.True(t, ok)
	assert.Equal(t, TypeVarchar, tbl.Columns[0].DataType)
	assert.Equal(t, 32, tbl.Columns[0].MaxLength)
	assert.Equal(t, "amount", tbl.Columns[1].DisplayName)
	assert.Len(t, tbl.RequiredColumns(), 1)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no tables", "tables: []\n"},
		{"bad type", "tables:\n  - name: t\n    columns:\n      - name: a\n        dataType: BLOB\n"},
		{"unknown field", "tables:\n  - name: t\n    colour: red\n    columns:\n      - name: a\n        dataType: TEXT\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}
