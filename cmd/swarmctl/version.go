package main

import (
	"fmt"

	swarmkit "github.com/kestrelai/swarmkit"
)

// VersionCmd prints the build's module version.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Println(swarmkit.GetVersion())
	return nil
}
