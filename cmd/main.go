package main

import (
	"os"

	"github.com/soundprediction/go-zepsync/cmd/zepsync"
)

func main() {
	if err := zepsync.Execute(); err != nil {
		os.Exit(1)
	}
}
