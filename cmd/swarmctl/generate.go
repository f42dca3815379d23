package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/kestrelai/swarmkit/config"
)

// GenerateCmd emits a JSON Schema for the config.Config format, grounded
// on the teacher's cmd/hector SchemaCmd. config.Config only carries
// `yaml` struct tags (YAML decoding is an external collaborator's concern
// per spec.md §1), so the reflector falls back to Go field names rather
// than snake_case keys — documented in DESIGN.md rather than papered
// over with a second set of tags that would only exist for this command.
type GenerateCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *GenerateCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.Title = "swarmkit Configuration Schema"
	schema.Description = "Configuration schema for a swarmkit swarm definition."

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("swarmctl generate: %w", err)
	}
	return nil
}
