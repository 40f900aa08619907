package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
)

func main() {
	SetupLogFile()
	SetupEnvs()

	db := SetupDB(MYSQL_URI)
	bot := SetupBot(BOT_TOKEN)

	store := NewGiftStore(db)
	api := NewGiftAPI(store, bot, BOT_TOKEN)

	router := mux.NewRouter()
	InitGiftRoutes(router, api)

	srv := &http.Server{
		Addr:         LISTEN_ADDR,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	InfoLogger.Println("gift miner backend listening on", LISTEN_ADDR)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	<-c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	srv.Shutdown(ctx)
	CloseDB(db)
	log.Println("shutting down")
}
