package lpscrape_test

import (
	"testing"

	"github.com/fwojciec/lpscrape"
	"github.com/stretchr/testify/assert"
)

func TestCoerceRecord(t *testing.T) {
	t.Parallel()

	schema := &lpscrape.Schema{Fields: []lpscrape.Field{
		{Name: "name", Type: lpscrape.FieldString},
		{Name: "price", Type: lpscrape.FieldString},
		{Name: "features", Type: lpscrape.FieldStringList},
		{Name: "specs", Type: lpscrape.FieldStringMap},
	}}

	t.Run("fills missing fields with nil and ignores unknown keys", func(t *testing.T) {
		t.Parallel()

		rec := lpscrape.CoerceRecord(map[string]any{
			"name":  "Widget",
			"extra": "ignored",
		}, schema)

		assert.Len(t, rec, 4)
		assert.Equal(t, "Widget", rec["name"])
		assert.Contains(t, rec, "price")
		assert.Nil(t, rec["price"])
		assert.Nil(t, rec["features"])
		assert.Nil(t, rec["specs"])
		assert.NotContains(t, rec, "extra")
	})

	t.Run("treats null markers as absent", func(t *testing.T) {
		t.Parallel()

		rec := lpscrape.CoerceRecord(map[string]any{
			"name":  "  null ",
			"price": "N/A",
		}, schema)

		assert.Nil(t, rec["name"])
		assert.Nil(t, rec["price"])
	})

	t.Run("coerces scalars and lists", func(t *testing.T) {
		t.Parallel()

		rec := lpscrape.CoerceRecord(map[string]any{
			"name":     []any{"Widget", "Pro"},
			"price":    float64(1980),
			"features": "Waterproof",
		}, schema)

		assert.Equal(t, "Widget, Pro", rec["name"])
		assert.Equal(t, "1980", rec["price"])
		assert.Equal(t, []string{"Waterproof"}, rec["features"])
	})

	t.Run("drops values that cannot be coerced", func(t *testing.T) {
		t.Parallel()

		rec := lpscrape.CoerceRecord(map[string]any{
			"name":     map[string]any{"a": "b"},
			"features": []any{map[string]any{"x": 1}, nil, ""},
			"specs":    "weight 2kg",
		}, schema)

		assert.Nil(t, rec["name"])
		assert.Nil(t, rec["features"])
		assert.Nil(t, rec["specs"])
	})

	t.Run("accepts maps and name value pairs", func(t *testing.T) {
		t.Parallel()

		fromMap := lpscrape.CoerceRecord(map[string]any{
			"specs": map[string]any{"Weight": "2 kg", "Size": float64(42), "Empty": nil},
		}, schema)
		fromPairs := lpscrape.CoerceRecord(map[string]any{
			"specs": []any{
				map[string]any{"name": "Weight", "value": "2 kg"},
				map[string]any{"key": "Size", "value": "42"},
			},
		}, schema)

		want := map[string]string{"Weight": "2 kg", "Size": "42"}
		assert.Equal(t, want, fromMap["specs"])
		assert.Equal(t, want, fromPairs["specs"])
	})

	t.Run("coerces nested objects", func(t *testing.T) {
		t.Parallel()

		nested := &lpscrape.Schema{Fields: []lpscrape.Field{{
			Name: "price", Type: lpscrape.FieldObject,
			Fields: []lpscrape.Field{
				{Name: "amount", Type: lpscrape.FieldString},
				{Name: "currency", Type: lpscrape.FieldString},
			},
		}}}

		rec := lpscrape.CoerceRecord(map[string]any{
			"price": map[string]any{"amount": float64(12.5)},
		}, nested)
		empty := lpscrape.CoerceRecord(map[string]any{
			"price": map[string]any{"amount": nil},
		}, nested)

		assert.Equal(t, lpscrape.Record{"amount": "12.5", "currency": nil}, rec["price"])
		assert.Nil(t, empty["price"])
	})
}

func TestRecord_Present(t *testing.T) {
	t.Parallel()

	rec := lpscrape.Record{
		"name":     "Widget",
		"blank":    "  ",
		"list":     []string{"a"},
		"empty":    []string{},
		"absent":   nil,
		"specs":    map[string]string{"k": "v"},
		"nested":   lpscrape.Record{"a": nil},
		"nestedOK": lpscrape.Record{"a": "x"},
	}

	assert.True(t, rec.Present("name"))
	assert.False(t, rec.Present("blank"))
	assert.True(t, rec.Present("list"))
	assert.False(t, rec.Present("empty"))
	assert.False(t, rec.Present("absent"))
	assert.False(t, rec.Present("missing"))
	assert.True(t, rec.Present("specs"))
	assert.False(t, rec.Present("nested"))
	assert.True(t, rec.Present("nestedOK"))

	assert.Equal(t, "Widget", rec.String("name"))
	assert.Equal(t, []string{"a"}, rec.Strings("list"))
	assert.Equal(t, map[string]string{"k": "v"}, rec.StringMap("specs"))
	assert.Empty(t, rec.String("list"))
}

func TestRecord_MissingFields(t *testing.T) {
	t.Parallel()

	schema := &lpscrape.Schema{Fields: []lpscrape.Field{
		{Name: "name", Type: lpscrape.FieldString},
		{Name: "price", Type: lpscrape.FieldString},
		{Name: "brand", Type: lpscrape.FieldString},
	}}
	rec := lpscrape.Record{"name": "Widget", "price": nil, "brand": nil}

	assert.Equal(t, []string{"brand", "price"}, rec.MissingFields(schema))
}
