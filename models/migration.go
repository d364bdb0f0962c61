package models

import (
	"log"

	"bitbucket.org/mmdatafocus/clients_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{},
		&ImportBatch{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
