// Command aud is a family of terminal audio and MIDI tools sharing one
// engine: a MIDI monitor, an oscilloscope data dump, and a tempo-sync
// client, all scriptable with Lua.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
