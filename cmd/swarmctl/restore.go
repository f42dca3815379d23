package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelai/swarmkit/snapshot"
)

// RestoreCmd rebuilds a swarm from a session's recorded config and
// rehydrates it from the session's snapshot, per spec.md §4.9, then drops
// into an interactive REPL so the restored conversation can continue.
type RestoreCmd struct {
	ID                    string `arg:"" help:"Session ID to restore."`
	PreserveSystemPrompts bool   `name:"preserve-system-prompts" help:"Keep each entry's historical system prompt instead of the agent's current one."`
}

func (c *RestoreCmd) Run(cli *CLI) error {
	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}
	meta, err := loadSessionMeta(home, c.ID)
	if err != nil {
		return fmt.Errorf("swarmctl restore: unknown session %q", c.ID)
	}

	snapData, err := os.ReadFile(sessionDir(home, c.ID) + "/snapshot.json")
	if err != nil {
		return fmt.Errorf("swarmctl restore: no snapshot recorded for session %q", c.ID)
	}
	snap, err := snapshot.Deserialize(snapData)
	if err != nil {
		return err
	}

	s, _, _, err := buildSwarm(meta.ConfigPath, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := snapshot.Restore(s, snap, snapshot.Options{PreserveSystemPrompts: c.PreserveSystemPrompts})
	if err != nil {
		return fmt.Errorf("swarmctl restore: %w", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Printf("Restored session %s (%d agent(s) skipped, %d delegation(s) skipped)\n",
		c.ID, len(result.SkippedAgents), len(result.SkippedDelegations))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	start := &StartCmd{}
	return start.runInteractive(ctx, s, "")
}
