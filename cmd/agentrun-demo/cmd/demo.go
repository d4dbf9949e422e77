package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arrowctl/agentrun/config"
	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/model/anthropicmodel"
	"github.com/arrowctl/agentrun/runtime/events"
	"github.com/arrowctl/agentrun/runtime/runner"
	"github.com/arrowctl/agentrun/session/inmemsession"
	"github.com/arrowctl/agentrun/toolexec/jsonschema"
)

var scenarioMessages = map[string]string{
	"s1": "hi",
	"s5": "please add 1 and 2",
	"s6": "keep calling tools",
}

func runDemo(_ *cobra.Command, _ []string) error {
	modelAdapter, err := selectModel(provider, scenario)
	if err != nil {
		return err
	}

	message, ok := scenarioMessages[scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q (want one of: s1, s5, s6)", scenario)
	}

	cfg, err := config.NewLoader().Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Concurrency.MaxConcurrentRuns = 1
	if scenario == "s6" {
		cfg.Limits.MaxTurns = 2
	}

	rn := runner.New(runner.Deps{
		Sessions:  inmemsession.New(),
		Model:     modelAdapter,
		Executor:  jsonschema.Wrap(addExecutor{}),
		Limits:    demoLimits{},
		Bootstrap: demoBootstrap{},
	}, cfg)

	handle, err := rn.Execute(context.Background(), runner.RunRequest{
		Message:   message,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	for ev := range handle.Events() {
		printEvent(ev)
	}
	return nil
}

// selectModel resolves the --provider flag into a concrete model.Adapter.
func selectModel(provider, scenario string) (model.Adapter, error) {
	switch provider {
	case "", "fake":
		return &scriptedModel{scenario: scenario}, nil
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY must be set to use --provider=anthropic")
		}
		adapter, err := anthropicmodel.NewFromAPIKey(apiKey, anthropicmodel.Options{DefaultMaxTokens: 1024})
		if err != nil {
			return nil, fmt.Errorf("configure anthropic model: %w", err)
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want one of: fake, anthropic)", provider)
	}
}

func printEvent(ev events.Event) {
	switch e := ev.(type) {
	case *events.RunQueued:
		fmt.Printf("run.queued{runId:%s, position:%d}\n", e.RunID, e.Position)
	case *events.RunStarted:
		fmt.Printf("run.started{runId:%s}\n", e.RunID)
	case *events.ContextStart:
		fmt.Println("context.start")
	case *events.ContextComplete:
		fmt.Println("context.complete")
	case *events.ModelStart:
		fmt.Println("model.start")
	case *events.ModelDelta:
		fmt.Printf("model.delta{%q}\n", e.Delta)
	case *events.ModelThinking:
		fmt.Printf("model.thinking{%q}\n", e.Delta)
	case *events.ModelComplete:
		fmt.Println("model.complete")
	case *events.ToolStart:
		fmt.Printf("tool.start{%s, %q, %v}\n", e.ToolCallID, e.ToolName, e.Arguments)
	case *events.ToolComplete:
		fmt.Printf("tool.complete{%s, result:%v}\n", e.ToolCallID, e.Result.Result)
	case *events.ToolError:
		fmt.Printf("tool.error{%s, %s}\n", e.ToolCallID, e.Error)
	case *events.RunCompleted:
		fmt.Printf("run.completed{stopReason:%s, message:%q}\n", e.Result.StopReason, e.Result.Message)
	case *events.RunError:
		fmt.Printf("run.error{%s}\n", e.Error)
	case *events.RunCancelled:
		fmt.Printf("run.cancelled{reason:%q}\n", e.Reason)
	default:
		fmt.Printf("%s\n", ev.Type())
	}
}
