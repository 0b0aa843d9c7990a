package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/entitystore"
	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
)

var bookType = model.MustEntityType("library", "book", "Books of the library",
	model.Field{Name: "name", Type: model.FieldTypeString, IsKey: true, Description: "The title"},
	model.Field{Name: "author", Type: model.FieldTypeString, Required: true},
	model.Field{Name: "summary", Type: model.FieldTypeText, EmbeddingProvider: "hugot"},
	model.Field{Name: "year", Type: model.FieldTypeInteger},
	model.Field{Name: "genres", Type: model.FieldTypeJSON},
)

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container with pgvector
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Local all-MiniLM-L6-v2 embeddings, downloaded on first use
	embedder, err := pipeline.NewHugotEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer embedder.Close()

	store, err := entitystore.NewStore(dbConfig, entitystore.WithoutGraph(), entitystore.WithEmbedder("hugot", embedder))
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if _, err := store.CreateSchema(ctx, bookType); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	books := []model.Instance{
		{"name": "Dune", "author": "Frank Herbert", "year": 1965, "genres": []string{"science fiction"},
			"summary": "A noble family fights for control of a desert planet that produces the most valuable spice in the universe."},
		{"name": "The Hobbit", "author": "J. R. R. Tolkien", "year": 1937, "genres": []string{"fantasy"},
			"summary": "A hobbit joins a company of dwarves to reclaim their mountain home from a dragon."},
		{"name": "Moby-Dick", "author": "Herman Melville", "year": 1851, "genres": []string{"adventure"},
			"summary": "A whaling captain hunts the white whale that took his leg across the oceans."},
	}

	fmt.Println("Upserting books...")
	if _, err := store.Upsert(ctx, bookType, books...); err != nil {
		log.Fatalf("Failed to upsert: %v", err)
	}

	// Embeddings are computed in the background
	store.Flush()
	fmt.Printf("Embedding stats: %+v\n", store.Stats())

	book, err := store.GetByKey(ctx, bookType, "Dune")
	if err != nil {
		log.Fatalf("Failed to get book: %v", err)
	}
	fmt.Printf("\nBook by key: %s by %s (%v)\n", book["name"], book["author"], book["year"])

	question := "a story about the sea"
	fmt.Printf("\nQuerying: %s\n", question)
	results, err := store.VectorSearch(ctx, bookType, question, model.OperatorCosine, 3)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}
	for i, r := range results {
		fmt.Printf("%d. %s (distance: %.4f)\n", i+1, r.Entity["name"], r.Distance)
	}
}
