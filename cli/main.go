package main

import (
	"os"

	_ "github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/porm-go/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
