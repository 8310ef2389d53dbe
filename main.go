package main

import (
	"os"

	"github.com/MarceloManteigass/EpanetAPI/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
