package json5_test

import (
	"testing"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/json5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject(t *testing.T) {
	t.Parallel()

	t.Run("decodes strict JSON", func(t *testing.T) {
		t.Parallel()

		obj, err := json5.DecodeObject(`{"product_name": "Widget", "price_info": null}`)

		require.NoError(t, err)
		assert.Equal(t, "Widget", obj["product_name"])
		assert.Contains(t, obj, "price_info")
		assert.Nil(t, obj["price_info"])
	})

	t.Run("strips code fences", func(t *testing.T) {
		t.Parallel()

		obj, err := json5.DecodeObject("```json\n{\"product_name\": \"Widget\"}\n```")

		require.NoError(t, err)
		assert.Equal(t, "Widget", obj["product_name"])
	})

	t.Run("ignores prose around the object", func(t *testing.T) {
		t.Parallel()

		obj, err := json5.DecodeObject("Here is the data:\n{\"name\": \"A {curly} name\"}\nHope this helps!")

		require.NoError(t, err)
		assert.Equal(t, "A {curly} name", obj["name"])
	})

	t.Run("accepts JSON5 syntax", func(t *testing.T) {
		t.Parallel()

		obj, err := json5.DecodeObject(`{
  // the product
  product_name: 'Widget',
  key_features: ["fast", "cheap",],
}`)

		require.NoError(t, err)
		assert.Equal(t, "Widget", obj["product_name"])
		assert.Equal(t, []any{"fast", "cheap"}, obj["key_features"])
	})

	t.Run("reports unparseable responses", func(t *testing.T) {
		t.Parallel()

		_, err := json5.DecodeObject(`{"product_name": "Widget"`)

		var extErr *lpscrape.ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, lpscrape.ExtractUnparseable, extErr.Reason)
	})

	t.Run("reports responses without an object", func(t *testing.T) {
		t.Parallel()

		_, err := json5.DecodeObject(`["not", "an", "object"]`)

		var extErr *lpscrape.ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, lpscrape.ExtractUnparseable, extErr.Reason)
		assert.ErrorIs(t, err, json5.ErrNoObject)
	})

	t.Run("reports empty responses", func(t *testing.T) {
		t.Parallel()

		_, err := json5.DecodeObject("  ")

		var extErr *lpscrape.ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, lpscrape.ExtractEmptyResponse, extErr.Reason)
	})
}

func TestObjectText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a": {"b": 1}}`, json5.ObjectText(`x {"a": {"b": 1}} y {"c": 2}`))
	assert.Equal(t, `{"a": "}"}`, json5.ObjectText(`{"a": "}"}`))
	assert.Empty(t, json5.ObjectText("no braces"))
}
