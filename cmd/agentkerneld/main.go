// Command agentkerneld is a small demo CLI that loads a bundle, runs the
// agent on one user input (up to the bundle's max_turns), and prints the
// turn count, termination reason, and the final message's content.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/agentkernel/structured-agents/agent"
	"github.com/agentkernel/structured-agents/observer"
)

func main() {
	bundlePath := flag.String("bundle", "./agents/demo", "path to a bundle directory or bundle.yaml file")
	input := flag.String("input", "Say hi", "user input for the demo run")
	flag.Parse()

	ctx := context.Background()

	a, err := agent.FromBundle(ctx, *bundlePath, agent.FromBundleOptions{
		Observer: observer.NullObserver{},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "agentkerneld: failed to load bundle:", err)
		os.Exit(1)
	}

	result, err := a.Run(ctx, *input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "agentkerneld: run failed:", err)
		os.Exit(1)
	}

	fmt.Println("Turns:", result.TurnCount)
	fmt.Println("Termination:", result.TerminationReason)
	if result.FinalMessage.Content != nil {
		fmt.Println("Assistant:", *result.FinalMessage.Content)
	}
}
