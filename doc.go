// Package swarmkit provides a declarative multi-agent orchestration
// engine: agents exchange turns through a chat loop, delegate work to one
// another along a validated graph, and share state through a scratchpad
// with read-before-edit tracking. Configuration is pure YAML; the engine
// itself never shells out to an LLM SDK directly, instead going through
// the Provider adapter interface in package llms.
//
// # Quick Start
//
// Build swarmctl, the CLI front end:
//
//	go install github.com/kestrelai/swarmkit/cmd/swarmctl@latest
//
// Scaffold and run a config:
//
//	swarmctl init swarm.yaml
//	swarmctl start swarm.yaml --prompt "hello"
//
// # Using as a Go library
//
// The packages compose without the CLI:
//
//	import (
//	    "github.com/kestrelai/swarmkit/config"
//	    "github.com/kestrelai/swarmkit/swarm"
//	    "github.com/kestrelai/swarmkit/builder"
//	)
//
// builder.NewSwarm/builder.NewAgent provide a fluent alternative to
// hand-writing config.Config literals.
//
// # Key components
//
//   - chat: the per-agent turn loop (LLM round-trip, tool execution,
//     compaction hook)
//   - delegation: the agent-to-agent call graph and its depth cap
//   - workflow: DAG-based multi-step execution as an alternative to
//     free-form delegation
//   - snapshot: capturing and restoring a swarm's full conversational
//     state
//   - mcpadapter, plugin: external tool sources bridged into the tool
//     registry
//   - observability: OTel-backed metrics exposed over Prometheus
package swarmkit
