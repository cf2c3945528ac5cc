package main

import (
	"os"

	"github.com/meridianins/ratekeeper/cmd/ratekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
