// Package yaml reads and writes extraction schemas as YAML documents using
// gopkg.in/yaml.v3.
package yaml

import (
	"errors"
	"io"
	"os"

	"github.com/fwojciec/lpscrape"
	"gopkg.in/yaml.v3"
)

// LoadSchema decodes a schema from r and validates it. Unknown keys are
// rejected so a misspelled field property fails loudly.
func LoadSchema(r io.Reader) (*lpscrape.Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var schema lpscrape.Schema
	if err := dec.Decode(&schema); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, lpscrape.Errorf(lpscrape.EINVALID, "schema document is empty")
		}
		return nil, lpscrape.Errorf(lpscrape.EINVALID, "invalid schema document: %v", err)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// LoadSchemaFile reads a schema from the YAML file at path.
func LoadSchemaFile(path string) (*lpscrape.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, lpscrape.Errorf(lpscrape.ENOTFOUND, "schema file %q not found", path)
		}
		return nil, err
	}
	defer f.Close()

	return LoadSchema(f)
}

// WriteSchema encodes schema to w as YAML.
func WriteSchema(w io.Writer, schema *lpscrape.Schema) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(schema); err != nil {
		return err
	}
	return enc.Close()
}
