package main

import (
	"fmt"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/yaml"
)

// Run executes the schema command. Without a file it prints the built-in
// schema, which is a starting point for custom schemas.
func (c *SchemaCmd) Run(deps *Dependencies) error {
	schema := lpscrape.DefaultSchema()
	if c.File != "" {
		var err error
		schema, err = yaml.LoadSchemaFile(c.File)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", lpscrape.ErrorMessage(err))
			return err
		}
	}
	return yaml.WriteSchema(deps.Stdout, schema)
}
