package main

import "github.com/talenttune/talenttune/storage/database"

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db)
}
