package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/workflow"
)

// WorkflowCmd runs one WorkflowConfig's nodes to completion against a
// prompt, per spec.md §4.4/§6 ("CLI surface (minimum)" names workflow
// execution as a first-class entry point alongside swarm start).
type WorkflowCmd struct {
	Config string `arg:"" help:"Path to the swarm config file." type:"path"`
	Name   string `arg:"" help:"Workflow name, as declared under workflows: in the config."`
	Prompt string `arg:"" help:"Initial prompt passed to the workflow's start node."`

	StreamLogs bool `name:"stream-logs" help:"Print LogStream events to stderr as they occur."`
}

func (c *WorkflowCmd) Run(cli *CLI) error {
	cfg, err := loadAndValidate(c.Config)
	if err != nil {
		return err
	}

	stream := logstream.New(nil)
	if c.StreamLogs {
		stream.Subscribe(logstream.Filter{}, func(e logstream.Event) {
			fmt.Fprintf(os.Stderr, "[%s] %s node=%s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Fields["node"])
		})
	}

	exec, err := workflow.NewExecutor(cfg, c.Name, newProviderRegistry(), newToolRegistry(), stream)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result, err := exec.Execute(ctx, c.Prompt)
	if err != nil {
		return fmt.Errorf("swarmctl workflow: %w", err)
	}
	fmt.Println(result.Content)
	return nil
}
