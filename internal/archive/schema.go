package archive

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed context.schema.json
var contextSchema string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat = true
		if err := c.AddResource("context.schema.json", strings.NewReader(contextSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("context.schema.json")
	})
	return schema, schemaErr
}

// Validate checks a queue message body against the context schema.
func Validate(body string) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("context schema: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return fmt.Errorf("context body: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("context body: %w", err)
	}
	return nil
}

// Decode validates then unmarshals a queue message body.
func Decode(body string) (Context, error) {
	if err := Validate(body); err != nil {
		return Context{}, err
	}
	return Unmarshal(body)
}
