package main

import (
	"os"

	askstreamcmder "github.com/papercomputeco/askstream/cmd/askstream"
)

func main() {
	cmd := askstreamcmder.NewAskstreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
