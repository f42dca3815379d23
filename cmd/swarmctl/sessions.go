package main

import (
	"fmt"
	"os"
)

// PSCmd lists sessions currently recorded as "running".
type PSCmd struct{}

func (c *PSCmd) Run(cli *CLI) error {
	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}
	ids, err := listSessionIDs(home)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-10s  %-20s  %s\n", "SESSION ID", "STATUS", "SWARM", "CONFIG")
	for _, id := range ids {
		meta, err := loadSessionMeta(home, id)
		if err != nil || meta.Status != "running" {
			continue
		}
		fmt.Printf("%-36s  %-10s  %-20s  %s\n", meta.ID, meta.Status, meta.SwarmName, meta.ConfigPath)
	}
	return nil
}

// ListSessionsCmd lists every known session regardless of status.
type ListSessionsCmd struct{}

func (c *ListSessionsCmd) Run(cli *CLI) error {
	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}
	ids, err := listSessionIDs(home)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-10s  %-20s  %-20s  %s\n", "SESSION ID", "STATUS", "SWARM", "CREATED", "CONFIG")
	for _, id := range ids {
		meta, err := loadSessionMeta(home, id)
		if err != nil {
			continue
		}
		fmt.Printf("%-36s  %-10s  %-20s  %-20s  %s\n",
			meta.ID, meta.Status, meta.SwarmName, meta.CreatedAt.Format("2006-01-02 15:04"), meta.ConfigPath)
	}
	return nil
}

// ShowCmd prints a session's recorded snapshot (per spec.md §6 Snapshot
// schema) as indented JSON.
type ShowCmd struct {
	ID string `arg:"" help:"Session ID to show."`
}

func (c *ShowCmd) Run(cli *CLI) error {
	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}
	meta, err := loadSessionMeta(home, c.ID)
	if err != nil {
		return fmt.Errorf("swarmctl show: unknown session %q", c.ID)
	}
	fmt.Printf("Session:     %s\n", meta.ID)
	fmt.Printf("Swarm:       %s\n", meta.SwarmName)
	fmt.Printf("Status:      %s\n", meta.Status)
	fmt.Printf("Config:      %s\n", meta.ConfigPath)
	fmt.Printf("Created:     %s\n", meta.CreatedAt)
	fmt.Printf("Updated:     %s\n", meta.UpdatedAt)

	snapPath := sessionDir(home, c.ID) + "/snapshot.json"
	data, err := os.ReadFile(snapPath)
	if err != nil {
		fmt.Println("(no snapshot recorded yet)")
		return nil
	}
	fmt.Println("\nSnapshot:")
	fmt.Println(string(data))
	return nil
}

// CleanCmd removes state for sessions that have finished (completed or
// failed), leaving running sessions untouched.
type CleanCmd struct {
	All bool `help:"Also remove running sessions (use with caution)."`
}

func (c *CleanCmd) Run(cli *CLI) error {
	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}
	ids, err := listSessionIDs(home)
	if err != nil {
		return err
	}

	removed := 0
	for _, id := range ids {
		meta, err := loadSessionMeta(home, id)
		if err != nil {
			continue
		}
		if meta.Status == "running" && !c.All {
			continue
		}
		if err := os.RemoveAll(sessionDir(home, id)); err != nil {
			return fmt.Errorf("swarmctl clean: removing session %q: %w", id, err)
		}
		removed++
	}
	fmt.Printf("Removed %d session(s)\n", removed)
	return nil
}
