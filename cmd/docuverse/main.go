// Package main is the entry point for the DocuVerse document chat service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/docuverse/cmd/docuverse/app"
)

func main() {
	app.NewApp().Run()
}
