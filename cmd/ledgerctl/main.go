package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ledgerctl",
		Usage: "loyalty ledger maintenance",
		Commands: []*cli.Command{
			migrateCommand(),
			auditCommand(),
			purgeCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
