package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/entitystore"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
)

// Needs a PostgreSQL server with both the vector and the age extension,
// configured through ENTITYSTORE_DB_* and ENTITYSTORE_GRAPH, plus
// OPENAI_API_KEY for embeddings and ANTHROPIC_API_KEY for Ask.

var projectType = model.MustEntityType("work", "project", "Projects of the team",
	model.Field{Name: "name", Type: model.FieldTypeString, IsKey: true},
	model.Field{Name: "summary", Type: model.FieldTypeText, EmbeddingProvider: "openai"},
	model.Field{Name: "budget", Type: model.FieldTypeFloat},
)

var topicType = model.MustEntityType("work", "topic", "Discussion topics",
	model.Field{Name: "name", Type: model.FieldTypeString, IsKey: true},
	model.Field{Name: "owner", Type: model.FieldTypeString},
)

func main() {
	ctx := context.Background()

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		log.Fatalf("Failed to load database configuration: %v", err)
	}
	if dbConfig.Graph == "" {
		dbConfig.Graph = "entities"
	}

	opts, err := entitystore.FromEnvironment()
	if err != nil {
		log.Fatalf("Failed to configure providers: %v", err)
	}

	store, err := entitystore.NewStore(dbConfig, opts...)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	for _, t := range []*model.EntityType{projectType, topicType} {
		if _, err := store.CreateSchema(ctx, t); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
	}

	_, err = store.Upsert(ctx, projectType,
		model.Instance{"name": "roadmap", "summary": "Plan the product goals for the next two quarters", "budget": 12000.0},
		model.Instance{"name": "migration", "summary": "Move the billing service to the new cluster", "budget": 8000.0},
	)
	if err != nil {
		log.Fatalf("Failed to upsert projects: %v", err)
	}
	_, err = store.Upsert(ctx, topicType, model.Instance{"name": "roadmap", "owner": "product"})
	if err != nil {
		log.Fatalf("Failed to upsert topics: %v", err)
	}
	store.Flush()

	// The same name exists as a project and as a topic
	resolved, err := store.ResolveByName(ctx, "roadmap")
	if err != nil {
		log.Fatalf("Failed to resolve: %v", err)
	}
	fmt.Println("Entities named roadmap:")
	for _, r := range resolved {
		fmt.Printf("- %s: %v\n", r.Type.FullName(), r.Entity)
	}

	results, err := store.Search(ctx, projectType, "infrastructure work", "hybrid", model.SearchConfig{Limit: 2})
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}
	fmt.Println("\nProjects about infrastructure:")
	for _, r := range results {
		fmt.Printf("- %s (%s, distance %.4f)\n", r.Entity["name"], r.RetrievalMethod, r.Distance)
	}

	rows, err := store.Ask(ctx, projectType, "What is the total budget of all projects?")
	if err != nil {
		log.Printf("Ask failed: %v", err)
		return
	}
	fmt.Printf("\nTotal budget: %v\n", rows)

	rows, err = store.AskGraph(ctx, projectType, "How many projects are there?")
	if err != nil {
		log.Printf("AskGraph failed: %v", err)
		return
	}
	fmt.Printf("Project nodes: %v\n", rows)
}
