package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"regexp"
)

//go:embed init.sql
var initSQL string

//go:embed graph.sql
var graphSQL string

// GraphFunctions are the AGE functions the graph handler relies on.
var GraphFunctions = []string{
	"create_graph",
	"cypher",
	"agtype_in",
}

var graphNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Init intializes the vector extension
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadGraph creates the age extension and the named graph if they do not exist.
func LoadGraph(db *sql.DB, graph string) error {
	if !graphNamePattern.MatchString(graph) {
		return fmt.Errorf("invalid graph name %q", graph)
	}

	exist, err := checkFunctions(db, GraphFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing graph functions: %w", err)
	}
	if !exist {
		_, err = db.Exec(graphSQL)
		if err != nil {
			return fmt.Errorf("error executing graph SQL: %w", err)
		}

		exist, err = checkFunctions(db, GraphFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing functions: %w", err)
		}
		if !exist {
			return fmt.Errorf("not all required graph functions were created")
		}
	}

	var count int
	err = db.QueryRow(`SELECT count(*) FROM ag_catalog.ag_graph WHERE name = $1;`, graph).Scan(&count)
	if err != nil {
		return fmt.Errorf("error checking graph %s: %w", graph, err)
	}
	if count > 0 {
		return nil
	}

	_, err = db.Exec(`SELECT ag_catalog.create_graph($1::name);`, graph)
	if err != nil {
		return fmt.Errorf("error creating graph %s: %w", graph, err)
	}

	log.Printf("Graph %s created successfully", graph)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
