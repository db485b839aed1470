// Command tutorcli runs a tutor session in the terminal. Typed lines stand in
// for speech recognition and spoken answers are printed.
package main

import (
	"os"
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
