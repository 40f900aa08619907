package main

import (
	"os"

	"github.com/joho/godotenv"
)

var MYSQL_URI string
var BOT_TOKEN string
var LISTEN_ADDR string

func SetupEnvs() {
	if err := godotenv.Load("./.env"); err != nil {
		InfoLogger.Println("no .env file, reading process environment")
	}

	MYSQL_URI = os.Getenv("MYSQL_URI")
	BOT_TOKEN = os.Getenv("BOT_TOKEN")
	LISTEN_ADDR = os.Getenv("LISTEN_ADDR")
	if LISTEN_ADDR == "" {
		LISTEN_ADDR = ":3000"
	}

	if MYSQL_URI == "" {
		panic("MYSQL_URI is required")
	}
	// required for init data verification; never log or echo it
	if BOT_TOKEN == "" {
		panic("BOT_TOKEN is required")
	}
}
