package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"mafia/config"
	"mafia/db"
	"mafia/game"
	"mafia/handlers"
	"mafia/llm"
	"mafia/middleware"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logger := logrus.New()

	// Scratchpad persistence is optional; without Mongo the game runs
	// with in-memory state only.
	var store game.ScratchpadStore
	if config.GetMongoDBURI() != "" {
		if err := db.InitMongoDB(); err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer db.Close()
		if err := db.CreateIndexes(); err != nil {
			logger.WithError(err).Warn("failed to create indexes")
		}
		store = db.NewRepository()
		logger.Info("connected to MongoDB")
	} else {
		logger.Warn("MONGODB_URI not set, agent scratchpads will not persist")
	}

	client, err := llm.NewClient(context.Background(), logger)
	if err != nil {
		log.Fatal("Failed to create LLM client:", err)
	}

	handlers.Init(client.Generate, store, logger)

	// Set up HTTP handlers
	http.HandleFunc("/create", middleware.EnableCORS(handlers.CreateGameHandler))
	http.HandleFunc("/start", middleware.EnableCORS(handlers.StartGameHandler))
	http.HandleFunc("/stop", middleware.EnableCORS(handlers.StopGameHandler))
	http.HandleFunc("/feed", middleware.EnableCORS(handlers.FeedHandler))
	http.HandleFunc("/agents", middleware.EnableCORS(handlers.AgentsHandler))
	http.HandleFunc("/stats", middleware.EnableCORS(handlers.StatsHandler))

	fmt.Println("Server running on http://localhost:8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}
