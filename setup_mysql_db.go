package main

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func SetupDB(mysqlURI string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(mysqlURI), &gorm.Config{})
	if err != nil {
		panic(err.Error())
	}

	if err := MigrateSchema(db); err != nil {
		panic(err.Error())
	}

	return db
}

func MigrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &GiftType{}, &UserGift{}, &Referral{}, &Txn{})
}

func CloseDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		ErrorLogger.Println(err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		ErrorLogger.Println(err)
	}
}
