package commands

import (
	"fmt"

	"github.com/realtechee/platform/version"
)

// printStartupBanner prints the user-friendly startup message for serve.
func printStartupBanner(port int, dbPath string, debugNotify bool) {
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║   ██████  ████  ██████  ██      RealTechee        ║\n")
	fmt.Printf("   ║   ██  ██   ██     ██    ██      renovation        ║\n")
	fmt.Printf("   ║   ██████   ██     ██    ██      platform          ║\n")
	fmt.Printf("   ║   ██  ██   ██     ██    ██                        ║\n")
	fmt.Printf("   ║   ██  ██  ████    ██    ██████                    ║\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ RealTechee Info ───────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:  %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:    %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Port:     %d\n", green, reset, port)
	fmt.Printf("%s│%s Database: %s\n", green, reset, dbPath)
	if debugNotify {
		fmt.Printf("%s│%s Notify:   %sSANDBOX MODE%s (all messages rerouted)\n", green, reset, yellow, reset)
	}
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
