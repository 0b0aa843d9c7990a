package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/siherrmann/entitystore"
	"github.com/siherrmann/entitystore/core/query"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
	"github.com/spf13/cobra"
)

var (
	typesPath string
	graphName string
	noGraph   bool
)

var rootCmd = &cobra.Command{
	Use:   "entitystore",
	Short: "CLI for the hybrid entity store",
	Long:  `Create entity tables, upsert entities and query them by key, vector, name or natural language.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or extend the tables of all entity types",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, types, err := openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, t := range types {
			if _, err := store.CreateSchema(cmd.Context(), t); err != nil {
				return fmt.Errorf("failed to create %s: %w", t.FullName(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s ready\n", t.FullName())
		}
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe [type]",
	Short: "Print the schema description of the entity types",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, types, err := openStore(true)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, t := range types {
			if len(args) == 1 && t.FullName() != args[0] {
				continue
			}
			ts, err := store.Register(t)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), query.Describe(ts))
		}
		return nil
	},
}

var upsertCmd = &cobra.Command{
	Use:   "upsert <type> <json-file>",
	Short: "Upsert a JSON list of entities",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		var instances []model.Instance
		if err := json.Unmarshal(data, &instances); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}

		store, t, err := openStoreFor(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := store.Upsert(cmd.Context(), t, instances...)
		if err != nil {
			return fmt.Errorf("failed to upsert: %w", err)
		}
		store.Flush()

		stats := store.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "Upserted %d entities (embedding batches: %d processed, %d failed)\n", len(rows), stats.Processed, stats.Failed)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <type> <key>",
	Short: "Get an entity by key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, t, err := openStoreFor(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		inst, err := store.GetByKey(cmd.Context(), t, args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, inst)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <type> <question>",
	Short: "Search entities by similarity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		operator, _ := cmd.Flags().GetString("operator")
		maxDistance, _ := cmd.Flags().GetFloat64("max-distance")
		strategy, _ := cmd.Flags().GetString("strategy")

		op, err := model.ParseVectorOperator(operator)
		if err != nil {
			return err
		}

		store, t, err := openStoreFor(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.Search(cmd.Context(), t, args[1], strategy, model.SearchConfig{Operator: op, Limit: limit, MaxDistance: model.Threshold(maxDistance)})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return printJSON(cmd, results)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Find entities of any type by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, types, err := openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, t := range types {
			if _, err := store.Register(t); err != nil {
				return err
			}
		}

		resolved, err := store.ResolveByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, resolved)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <type> <question>",
	Short: "Answer a question with a translated query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, _ := cmd.Flags().GetBool("graph")

		store, t, err := openStoreFor(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		var rows []model.Row
		if graph {
			rows, err = store.AskGraph(cmd.Context(), t, args[1])
		} else {
			rows, err = store.Ask(cmd.Context(), t, args[1])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, rows)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <statement>",
	Short: "Run a raw SQL statement, or cypher with --graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, _ := cmd.Flags().GetBool("graph")

		store, _, err := openStore(true)
		if err != nil {
			return err
		}
		defer store.Close()

		var rows []model.Row
		if graph {
			rows, err = store.QueryGraph(cmd.Context(), args[0])
		} else {
			rows, err = store.Query(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, rows)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill <type>",
	Short: "Compute embeddings missing after failed or dropped batches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, t, err := openStoreFor(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		total := 0
		for {
			n, err := store.Backfill(cmd.Context(), t, limit)
			if err != nil {
				return err
			}
			total += n
			if n < limit {
				break
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backfilled %d rows of %s\n", total, t.FullName())
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <type> <hnsw|ivfflat>",
	Short: "Replace the vector index of an entity type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		operator, _ := cmd.Flags().GetString("operator")
		op, err := model.ParseVectorOperator(operator)
		if err != nil {
			return err
		}

		store, t, err := openStoreFor(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ChangeIndexType(cmd.Context(), t, args[1], op, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s index on %s\n", args[1], t.FullName())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&typesPath, "types", "t", "types.json", "JSON file with entity type definitions")
	rootCmd.PersistentFlags().StringVar(&graphName, "graph-name", "", "AGE graph to mirror identity entities into (default $ENTITYSTORE_GRAPH)")
	rootCmd.PersistentFlags().BoolVar(&noGraph, "no-graph", false, "Disable the graph mirror")

	searchCmd.Flags().IntP("limit", "l", model.DefaultSearchLimit, "Maximum number of results")
	searchCmd.Flags().StringP("operator", "o", "inner_product", "Distance operator: inner_product, cosine, l2, l1")
	searchCmd.Flags().Float64("max-distance", model.DefaultMaxDistance, "Distance threshold")
	searchCmd.Flags().StringP("strategy", "s", "vector", "Retrieval strategy: key, vector, hybrid")

	askCmd.Flags().Bool("graph", false, "Translate into cypher and run on the graph")
	queryCmd.Flags().Bool("graph", false, "Run the statement as cypher on the graph")

	backfillCmd.Flags().IntP("limit", "l", 100, "Rows per backfill pass")
	indexCmd.Flags().StringP("operator", "o", "inner_product", "Distance operator of the index")

	rootCmd.AddCommand(initCmd, describeCmd, upsertCmd, getCmd, searchCmd, resolveCmd, askCmd, queryCmd, backfillCmd, indexCmd)
}

// loadTypes reads the entity type definitions. A missing file is only an
// error if the types are required.
func loadTypes(path string, required bool) ([]*model.EntityType, error) {
	if !required && !fileExists(path) {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read types: %w", err)
	}
	return model.ParseEntityTypes(data)
}

// findType looks a type up by full name; a bare name means the default namespace.
func findType(types []*model.EntityType, name string) (*model.EntityType, error) {
	if !strings.Contains(name, ".") {
		name = model.DefaultNamespace + "." + name
	}
	for _, t := range types {
		if t.FullName() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("entity type %s is not defined in %s", name, typesPath)
}

// storeOptions combines the provider environment with the graph flags.
func storeOptions() ([]entitystore.Option, error) {
	opts, err := entitystore.FromEnvironment()
	if err != nil {
		return nil, err
	}
	if graphName != "" {
		opts = append(opts, entitystore.WithGraph(graphName))
	}
	if noGraph {
		opts = append(opts, entitystore.WithoutGraph())
	}
	return opts, nil
}

// openStore connects with the environment configuration. Types are only
// loaded if the types file is required or present.
func openStore(withoutTypes bool) (*entitystore.Store, []*model.EntityType, error) {
	types, err := loadTypes(typesPath, !withoutTypes)
	if err != nil {
		return nil, nil, err
	}

	config, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, nil, err
	}

	opts, err := storeOptions()
	if err != nil {
		return nil, nil, err
	}

	store, err := entitystore.NewStore(config, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, types, nil
}

// openStoreFor opens the store and registers the named type.
func openStoreFor(name string) (*entitystore.Store, *model.EntityType, error) {
	types, err := loadTypes(typesPath, true)
	if err != nil {
		return nil, nil, err
	}
	t, err := findType(types, name)
	if err != nil {
		return nil, nil, err
	}

	store, _, err := openStore(true)
	if err != nil {
		return nil, nil, err
	}
	if _, err := store.Register(t); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, t, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
