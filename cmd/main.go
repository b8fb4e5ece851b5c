package main

import (
	"os"

	"github.com/kgrail/kgrail/cmd/kgrail"
)

func main() {
	if err := kgrail.Execute(); err != nil {
		os.Exit(1)
	}
}
