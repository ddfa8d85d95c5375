package main

import (
	"net/http"
	"os"

	"writervault/config/database"
	"writervault/pkg/logger"
	"writervault/router"
	"writervault/socket"

	"github.com/joho/godotenv"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	hub := socket.NewHub()
	handler := router.Setup(db, hub)

	// The hub's event loop and the reminder poll run for the lifetime of
	// the process; there is no teardown.
	go hub.Run()
	go hub.ReminderWorker()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Sugar.Infof("writervault listening on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
