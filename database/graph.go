package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/entitystore/core/query"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
)

// GraphDBHandlerFunctions defines the interface for graph operations.
type GraphDBHandlerFunctions interface {
	EnsureLabel(ctx context.Context, t *model.EntityType) error
	UpsertNodes(ctx context.Context, t *model.EntityType, instances []model.Instance) error
	MatchByName(ctx context.Context, name string) ([]*model.GraphNode, error)
	Query(ctx context.Context, cypher string) ([]model.Row, error)
}

// GraphDBHandler mirrors entities into one AGE graph.
type GraphDBHandler struct {
	gateway GatewayFunctions
	logger  *slog.Logger
	graph   string
}

// NewGraphDBHandler creates a new graph handler. The graph has to exist,
// see sql.LoadGraph.
func NewGraphDBHandler(gateway GatewayFunctions, logger *slog.Logger, graph string) (*GraphDBHandler, error) {
	if gateway == nil {
		return nil, helper.NewError("gateway validation", fmt.Errorf("gateway is nil"))
	}
	if _, err := query.WrapCypher(graph, "RETURN 1"); err != nil {
		return nil, helper.NewError("graph validation", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Initialized GraphDBHandler", slog.String("graph", graph))

	return &GraphDBHandler{
		gateway: gateway,
		logger:  logger,
		graph:   graph,
	}, nil
}

// Graph returns the graph name.
func (h *GraphDBHandler) Graph() string {
	return h.graph
}

// EnsureLabel creates the vertex label of t if it does not exist yet.
func (h *GraphDBHandler) EnsureLabel(ctx context.Context, t *model.EntityType) error {
	if err := t.Require(model.CapabilityIdentity); err != nil {
		return err
	}

	exists, err := query.LabelExists(h.graph, t)
	if err != nil {
		return helper.NewError("build label query", err)
	}
	rows, err := h.gateway.ExecuteSession(ctx, query.CypherPreamble(), []string{exists})
	if err != nil {
		return helper.NewError("select label", err)
	}
	if len(rows) > 0 && fmt.Sprint(rows[0]["count"]) != "0" {
		return nil
	}

	create, err := query.CreateVertexLabel(h.graph, t)
	if err != nil {
		return helper.NewError("build label statement", err)
	}
	_, err = h.gateway.ExecuteSession(ctx, query.CypherPreamble(), []string{create})
	if err != nil {
		return helper.NewError("create label", err)
	}

	h.logger.Info("Checked/created vertex label", slog.String("label", t.Label()))

	return nil
}

// UpsertNodes merges one node per instance by label and name.
func (h *GraphDBHandler) UpsertNodes(ctx context.Context, t *model.EntityType, instances []model.Instance) error {
	if len(instances) == 0 {
		return nil
	}

	cyphers, err := query.UpsertNodes(t, instances)
	if err != nil {
		return helper.NewError("build node upserts", err)
	}

	statements := make([]string, 0, len(cyphers))
	for _, c := range cyphers {
		s, err := query.WrapCypher(h.graph, c)
		if err != nil {
			return helper.NewError("wrap cypher", err)
		}
		statements = append(statements, s)
	}

	_, err = h.gateway.ExecuteSession(ctx, query.CypherPreamble(), statements)
	if err != nil {
		return helper.NewError("upsert nodes", err)
	}

	return nil
}

// MatchByName returns the nodes of any label whose name property matches.
func (h *GraphDBHandler) MatchByName(ctx context.Context, name string) ([]*model.GraphNode, error) {
	cypher, err := query.MatchByName(name)
	if err != nil {
		return nil, helper.NewError("build match", err)
	}

	rows, err := h.Query(ctx, cypher)
	if err != nil {
		return nil, err
	}

	nodes := make([]*model.GraphNode, 0, len(rows))
	for _, r := range rows {
		node, err := model.ParseVertex(r["n"])
		if err != nil {
			return nil, helper.NewError("parse vertex", err)
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// Query runs a raw cypher query returning a single agtype column n.
func (h *GraphDBHandler) Query(ctx context.Context, cypher string) ([]model.Row, error) {
	statement, err := query.WrapCypher(h.graph, cypher)
	if err != nil {
		return nil, helper.NewError("wrap cypher", err)
	}

	rows, err := h.gateway.ExecuteSession(ctx, query.CypherPreamble(), []string{statement})
	if err != nil {
		return nil, helper.NewError("query graph", err)
	}

	return rows, nil
}
