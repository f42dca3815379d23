package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/delegation"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/scratchpad"
	"github.com/kestrelai/swarmkit/tools"
)

// Result is one node's (or the workflow's final) outcome, per spec.md §4.4.
// Agent carries the synthetic names the spec assigns to non-agent outcomes:
// "skipped:<node>" for a skip_execution result, "halted:<node>" for a
// halt_workflow result.
type Result struct {
	NodeName string
	Agent    string
	Content  string
}

// Executor runs one WorkflowConfig's nodes in topological order, each as a
// mini-Swarm, per spec.md §4.4/§4.5.
type Executor struct {
	Cfg       *config.Config
	Workflow  *config.WorkflowConfig
	Providers *llms.Registry
	Tools     *tools.Registry
	Stream    *logstream.LogStream

	mu          sync.Mutex
	instances   map[string]*chat.Chat // agent name -> cached instance (reset_context:false)
	sharedPad   *scratchpad.Scratchpad
	readTracker *scratchpad.ReadTracker
}

// NewExecutor constructs an Executor for workflowName, found in cfg.
func NewExecutor(cfg *config.Config, workflowName string, providers *llms.Registry, toolReg *tools.Registry, stream *logstream.LogStream) (*Executor, error) {
	wf, ok := cfg.GetWorkflow(workflowName)
	if !ok {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "workflow", "NewExecutor",
			fmt.Sprintf("no workflow named %q", workflowName), nil)
	}
	return &Executor{
		Cfg:         cfg,
		Workflow:    wf,
		Providers:   providers,
		Tools:       toolReg,
		Stream:      stream,
		instances:   make(map[string]*chat.Chat),
		sharedPad:   scratchpad.New(scratchpad.ModeEnabled),
		readTracker: scratchpad.NewReadTracker(),
	}, nil
}

// Execute runs the workflow from its start_node through topological order,
// implementing the per-node lifecycle of spec.md §4.4 steps 1-11.
func (e *Executor) Execute(ctx context.Context, originalPrompt string) (*Result, error) {
	order, err := TopoOrder(e.Workflow)
	if err != nil {
		return nil, err
	}

	nodesByName := make(map[string]config.NodeConfig, len(e.Workflow.Nodes))
	for _, n := range e.Workflow.Nodes {
		nodesByName[n.Name] = n
	}

	// Reorder so execution starts at start_node and otherwise follows the
	// computed topological order (dependencies of start_node, if any, are
	// assumed already satisfied since start_node has zero in-degree).
	startIdx := 0
	for i, name := range order {
		if name == e.Workflow.StartNode {
			startIdx = i
			break
		}
	}
	order = order[startIdx:]

	allResults := make(map[string]*Result, len(order))
	input := originalPrompt
	pos := 0

	for pos < len(order) {
		nodeName := order[pos]
		node := nodesByName[nodeName]

		result, outcome, err := e.runNode(ctx, node, originalPrompt, input, allResults)
		if err != nil {
			return nil, err
		}
		allResults[nodeName] = result

		switch outcome.outcome {
		case outcomeHalt:
			return &Result{NodeName: nodeName, Agent: "halted:" + nodeName, Content: outcome.content}, nil
		case outcomeGoto:
			idx := indexOf(order, outcome.gotoNode)
			if idx < 0 {
				return nil, swarmerr.New(swarmerr.KindConfiguration, "workflow", "Execute",
					"goto_node target "+outcome.gotoNode+" not found in execution order", nil)
			}
			input = outcome.content
			pos = idx
			continue
		}

		input = result.Content
		pos++
	}

	last := allResults[order[len(order)-1]]
	return last, nil
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

// runNode implements one node's lifecycle: bind context, emit node_start,
// run the input transformer, execute the mini-Swarm (unless skipped), run
// the output transformer, emit node_stop.
func (e *Executor) runNode(ctx context.Context, node config.NodeConfig, originalPrompt, input string, prior map[string]*Result) (*Result, transformResult, error) {
	e.emit("node_start", node.Name)
	defer e.emit("node_stop", node.Name)

	deps := make([]string, 0, len(node.DependsOn))
	allResults := make(map[string]string, len(prior))
	for name, r := range prior {
		allResults[name] = r.Content
	}
	deps = append(deps, node.DependsOn...)

	inputNC := NodeContext{
		Event:          "input",
		Node:           node.Name,
		OriginalPrompt: originalPrompt,
		Content:        input,
		AllResults:     allResults,
		Dependencies:   deps,
	}
	inTr, err := runTransformer(ctx, node.InputTransform, inputNC)
	if err != nil {
		return nil, transformResult{}, err
	}
	if inTr.outcome == outcomeHalt || inTr.outcome == outcomeGoto {
		return &Result{NodeName: node.Name, Agent: "halted:" + node.Name, Content: inTr.content}, inTr, nil
	}
	if inTr.outcome == outcomeSkip {
		return &Result{NodeName: node.Name, Agent: "skipped:" + node.Name, Content: inTr.content}, transformResult{outcome: outcomeContinue, content: inTr.content}, nil
	}

	content := inTr.content
	var nodeOutput string
	if len(node.Agents) == 0 {
		nodeOutput = content
	} else {
		nodeOutput, err = e.runNodeSwarm(ctx, node, content)
		if err != nil {
			return nil, transformResult{}, err
		}
	}

	outputNC := NodeContext{
		Event:          "output",
		Node:           node.Name,
		OriginalPrompt: originalPrompt,
		Content:        nodeOutput,
		AllResults:     allResults,
		Dependencies:   deps,
	}
	outTr, err := runTransformer(ctx, node.OutputTransform, outputNC)
	if err != nil {
		return nil, transformResult{}, err
	}
	if outTr.outcome == outcomeHalt {
		return &Result{NodeName: node.Name, Agent: "halted:" + node.Name, Content: outTr.content}, outTr, nil
	}

	finalContent := outTr.content
	if outTr.outcome != outcomeContinue && outTr.outcome != outcomeGoto {
		finalContent = nodeOutput
	}
	return &Result{NodeName: node.Name, Agent: node.Lead, Content: finalContent}, outTr, nil
}

// runNodeSwarm builds (or reuses cached, for reset_context:false agents)
// chat instances for node's agents and runs the node's lead agent on
// input, per spec.md §4.4 step 8 / §4.5.
func (e *Executor) runNodeSwarm(ctx context.Context, node config.NodeConfig, input string) (string, error) {
	graph := delegation.New(func(name string) (*chat.Chat, error) {
		return e.buildNodeAgentChat(node, name, nil)
	}, nil, 0)

	leadName := node.Lead
	if leadName == "" && len(node.Agents) > 0 {
		leadName = node.Agents[0].Name
	}

	leadChat, err := e.getOrBuildAgentChat(node, leadName, graph)
	if err != nil {
		return "", err
	}

	msg, err := leadChat.Ask(ctx, input)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (e *Executor) getOrBuildAgentChat(node config.NodeConfig, agentName string, graph *delegation.Graph) (*chat.Chat, error) {
	var nodeAgent config.NodeAgentConfig
	for _, na := range node.Agents {
		if na.Name == agentName {
			nodeAgent = na
			break
		}
	}

	if !nodeAgent.ResetContext {
		e.mu.Lock()
		if c, ok := e.instances[agentName]; ok {
			e.mu.Unlock()
			return c, nil
		}
		e.mu.Unlock()
	}

	c, err := e.buildNodeAgentChat(node, agentName, graph)
	if err != nil {
		return nil, err
	}

	if !nodeAgent.ResetContext {
		e.mu.Lock()
		e.instances[agentName] = c
		e.mu.Unlock()
	}
	return c, nil
}

func (e *Executor) buildNodeAgentChat(node config.NodeConfig, agentName string, graph *delegation.Graph) (*chat.Chat, error) {
	agentCfg, ok := e.Cfg.Agents[agentName]
	if !ok {
		return nil, swarmerr.New(swarmerr.KindAgentNotFound, "workflow", "buildNodeAgentChat",
			fmt.Sprintf("node %s references unknown agent %q", node.Name, agentName), nil)
	}
	providerCfg, ok := e.Cfg.Providers[agentCfg.Provider]
	if !ok {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "workflow", "buildNodeAgentChat",
			fmt.Sprintf("agent %q references unknown provider %q", agentName, agentCfg.Provider), nil)
	}
	provider, err := e.Providers.Build(providerCfg)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindLLM, "workflow", "buildNodeAgentChat", "failed to build provider", err)
	}

	var nodeAgent config.NodeAgentConfig
	for _, na := range node.Agents {
		if na.Name == agentName {
			nodeAgent = na
			break
		}
	}

	toolRefs := agentCfg.Tools
	if len(nodeAgent.ToolOverride) > 0 {
		toolRefs = nodeAgent.ToolOverride
	}
	toolNames := make([]string, 0, len(toolRefs)+len(nodeAgent.DelegatesTo))
	for _, ref := range toolRefs {
		toolNames = append(toolNames, ref.Name)
	}
	toolNames = append(toolNames, nodeAgent.DelegatesTo...)

	toolReg := e.Tools
	if graph != nil && len(nodeAgent.DelegatesTo) > 0 {
		toolReg = e.Tools.Clone()
		if err := graph.Install(toolReg, agentName, nodeAgent.DelegatesTo); err != nil {
			return nil, swarmerr.New(swarmerr.KindConfiguration, "workflow", "buildNodeAgentChat",
				"failed to install delegation tools", err)
		}
	}

	return chat.New(chat.Config{
		AgentName:    agentName,
		SystemPrompt: agentCfg.SystemPrompt,
		Provider:     provider,
		Tools:        toolReg,
		ToolContext: tools.Context{
			AgentName:   agentName,
			Directory:   agentCfg.WorkingDir,
			Scratchpad:  e.sharedPad,
			ReadTracker: e.readTracker,
		},
		ToolNames:      toolNames,
		ContextWindow:  providerCfg.ContextWindow,
		MaxConcurrency: agentCfg.MaxConcurrency,
		Stream:         e.Stream,
	}), nil
}

func (e *Executor) emit(eventType, node string) {
	if e.Stream == nil {
		return
	}
	e.Stream.Emit(logstream.Event{Type: eventType, Fields: map[string]any{"node": node}})
}
