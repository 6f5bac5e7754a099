// Command emotectl inspects the emote relay's persistent state: it runs
// searches against the published index, reports ingestion progress and
// shows cached downloads. It never uploads anything.
//
// Usage:
//
//	emotectl search pog --page 1
//	emotectl status --pending
//	emotectl cache https://cdn.discordapp.com/emojis/123.png
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
