package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	product := reg.Table("product")
	require.NotNil(t, product)
	assert.Equal(t, []string{"name"}, product.TextColumns())

	order := reg.Table("order")
	require.NotNil(t, order)
	// Orders have a reference and a decimal but nothing text-typed.
	assert.Empty(t, order.TextColumns())

	line := reg.Table("order_line")
	require.NotNil(t, line)
	field := line.Field("product")
	require.NotNil(t, field)
	require.Equal(t, Reference, field.Type)
	require.NotNil(t, field.Ref)
	assert.Equal(t, "product", field.Ref.Table)
	assert.Equal(t, "id", field.Ref.KeyColumn)
	assert.Equal(t, []string{"name"}, field.Ref.SearchColumns)
	assert.Equal(t, "name", field.Ref.OrderBy.Column)
	assert.Equal(t, "Stout", field.Ref.Label(Row{"id": int64(1), "name": "Stout"}))

	assert.Nil(t, reg.Table("nope"))
	assert.Nil(t, line.Field("nope"))
}

func TestOrderReferenceLabelsByID(t *testing.T) {
	reg := DefaultRegistry()
	ref := reg.Table("order_line").Field("order").Ref
	require.NotNil(t, ref)
	assert.Equal(t, "42", ref.Label(Row{"id": int64(42)}))
}
