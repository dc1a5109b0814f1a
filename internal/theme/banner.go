package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		"  ✦✵✷   " + magenta + "AURALYTICS" + reset + "   ✷✵✦\n" +
		cyan + "    ▄▀▀▄  █  █ █▀▀▄ ▄▀▀▄\n" + reset +
		cyan + "    █▄▄█  █  █ █▄▄▀ █▄▄█\n" + reset +
		cyan + "    █  █  ▀▄▄▀ █  █ █  █\n" + reset +
		yellow + "     ────────────────────────\n" + reset +
		"   measure the aura of any handle ✦\n"

	return art
}

// TierLine renders a score with its tier for terminal output.
func TierLine(handle string, score int, tier string) string {
	const magenta = "\033[35m"
	const reset = "\033[0m"
	return fmt.Sprintf("@%s  %s%d%s  %s", handle, magenta, score, reset, tier)
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
