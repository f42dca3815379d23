package main

import (
	"fmt"
	"os"
)

// InitCmd scaffolds a minimal config file, the same "create from defaults"
// convenience the teacher's ServeCmd.createMinimalConfig provides when no
// config file exists yet.
type InitCmd struct {
	Path string `arg:"" optional:"" default:"swarm.yaml" help:"Path to write the new config file to."`
}

const initTemplate = `version: "1"
name: my-swarm
description: A minimal swarm configuration.

providers:
  openai:
    type: openai
    model: gpt-4o-mini
    api_key: ${OPENAI_API_KEY}

agents:
  lead:
    name: lead
    model: gpt-4o-mini
    provider: openai
    system_prompt: You are a helpful assistant.
    working_dir: .
`

func (c *InitCmd) Run(cli *CLI) error {
	if _, err := os.Stat(c.Path); err == nil {
		return fmt.Errorf("swarmctl init: %q already exists", c.Path)
	}
	if err := os.WriteFile(c.Path, []byte(initTemplate), 0o644); err != nil {
		return fmt.Errorf("swarmctl init: %w", err)
	}
	fmt.Printf("Wrote %s\n", c.Path)
	return nil
}
