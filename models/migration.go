package models

import (
	"log"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tutor{}, &Family{}, &Student{},
		&Lesson{}, &LessonAttendee{},
		&AdditionalHoursRequest{},
		&PayrollMeta{}, &PayrollItem{},
		&InvoiceMeta{}, &Invoice{}, &InvoiceLineItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
