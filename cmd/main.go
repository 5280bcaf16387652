package main

import (
	"os"

	"github.com/soundprediction/naturegraph/cmd/naturegraph"
)

func main() {
	if err := naturegraph.Execute(); err != nil {
		os.Exit(1)
	}
}
