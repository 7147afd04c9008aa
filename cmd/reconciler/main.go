package main

import (
	"os"

	"github.com/kaspanet/reorgkeeper/app"
)

func main() {
	if err := app.StartApp(); err != nil {
		os.Exit(1)
	}
}
