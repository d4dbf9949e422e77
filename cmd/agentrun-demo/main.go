// Command agentrun-demo wires an in-memory Runner end to end (admission
// queue, session lock, turn/tool-round driver, context assembler, and a
// model adapter) and prints the event sequence for one of the scripted
// scenarios from spec §8, or drives a real Anthropic model when --provider
// is set and ANTHROPIC_API_KEY is exported.
package main

import (
	"os"

	"github.com/arrowctl/agentrun/cmd/agentrun-demo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
