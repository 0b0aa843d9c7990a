package query

import (
	"fmt"

	"github.com/siherrmann/entitystore/model"
)

// Vector index types supported by pgvector.
const (
	IndexHNSW    = "hnsw"
	IndexIVFFlat = "ivfflat"
)

var operatorClasses = map[model.VectorOperator]string{
	model.OperatorInnerProduct: "vector_ip_ops",
	model.OperatorCosine:       "vector_cosine_ops",
	model.OperatorL2:           "vector_l2_ops",
	model.OperatorL1:           "vector_l1_ops",
}

// VectorIndexName returns the index name of the first embedding column.
func VectorIndexName(ts *model.TableSchema) string {
	if len(ts.EmbeddingColumns) == 0 {
		return ""
	}
	return fmt.Sprintf("idx_%s_%s_%s", ts.Type.Namespace, ts.Type.Name, ts.EmbeddingColumns[0].ColumnName)
}

// DropVectorIndex drops the vector index of the first embedding column.
func DropVectorIndex(ts *model.TableSchema) (string, error) {
	if len(ts.EmbeddingColumns) == 0 {
		return "", ts.Type.Require(model.CapabilityEmbeddings)
	}
	return fmt.Sprintf("DROP INDEX IF EXISTS %s.%s", ts.Type.Namespace, VectorIndexName(ts)), nil
}

// CreateVectorIndex indexes the first embedding column for the operator.
// params:
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func CreateVectorIndex(ts *model.TableSchema, indexType string, op model.VectorOperator, params map[string]int) (string, error) {
	if len(ts.EmbeddingColumns) == 0 {
		return "", ts.Type.Require(model.CapabilityEmbeddings)
	}
	opClass, ok := operatorClasses[op]
	if !ok {
		return "", fmt.Errorf("unknown vector operator %q", op)
	}

	prefix := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s", VectorIndexName(ts), TableName(ts))
	column := Ident(ts.EmbeddingColumns[0].ColumnName)

	switch indexType {
	case IndexHNSW:
		m := 16
		efConstruction := 64
		if v, ok := params["m"]; ok && v > 0 {
			m = v
		}
		if v, ok := params["ef_construction"]; ok && v > 0 {
			efConstruction = v
		}
		return fmt.Sprintf("%s USING hnsw (%s %s) WITH (m = %d, ef_construction = %d)", prefix, column, opClass, m, efConstruction), nil
	case IndexIVFFlat:
		if op == model.OperatorL1 {
			return "", fmt.Errorf("ivfflat does not support the L1 operator")
		}
		lists := 100
		if v, ok := params["lists"]; ok && v > 0 {
			lists = v
		}
		return fmt.Sprintf("%s USING ivfflat (%s %s) WITH (lists = %d)", prefix, column, opClass, lists), nil
	}

	return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType)
}
