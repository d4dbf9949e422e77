package runner

import "github.com/arrowctl/agentrun/context/defaults"

// systemDefaults derives the Defaults Resolver's system-layer parameters
// from the Runner's configuration. The Runner's Config carries only
// concurrency/limits/retry knobs (spec §6.5); model parameter defaults live
// one layer up, in agent or session metadata, so this layer is empty unless
// a future config surface adds one.
func systemDefaults(_ Config) defaults.System {
	return defaults.System{}
}
