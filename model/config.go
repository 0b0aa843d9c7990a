package model

import "fmt"

// VectorOperator is a pgvector distance operator.
type VectorOperator string

const (
	// OperatorInnerProduct is the negative inner product.
	OperatorInnerProduct VectorOperator = "<#>"
	OperatorCosine       VectorOperator = "<=>"
	OperatorL2           VectorOperator = "<->"
	OperatorL1           VectorOperator = "<+>"
)

// Valid reports whether the operator is one pgvector understands.
func (o VectorOperator) Valid() bool {
	switch o {
	case OperatorInnerProduct, OperatorCosine, OperatorL2, OperatorL1:
		return true
	}
	return false
}

// ParseVectorOperator accepts an operator or its name.
func ParseVectorOperator(s string) (VectorOperator, error) {
	switch s {
	case "", "inner_product", "ip", string(OperatorInnerProduct):
		return OperatorInnerProduct, nil
	case "cosine", string(OperatorCosine):
		return OperatorCosine, nil
	case "l2", "euclidean", string(OperatorL2):
		return OperatorL2, nil
	case "l1", "manhattan", string(OperatorL1):
		return OperatorL1, nil
	}
	return "", fmt.Errorf("unknown vector operator %q", s)
}

const (
	DefaultSearchLimit = 7
	// DefaultMaxDistance is the distance threshold of vector search.
	DefaultMaxDistance = 2.0
)

// SearchConfig represents configuration for a vector search.
// A nil MaxDistance means the default threshold; zero is a valid threshold.
type SearchConfig struct {
	Operator    VectorOperator `json:"operator"`
	Limit       int            `json:"limit"`
	MaxDistance *float64       `json:"max_distance,omitempty"`
}

// Threshold returns a MaxDistance of d.
func Threshold(d float64) *float64 {
	return &d
}

// Threshold returns the distance threshold, or the default if unset.
func (c SearchConfig) Threshold() float64 {
	if c.MaxDistance == nil {
		return DefaultMaxDistance
	}
	return *c.MaxDistance
}

// DefaultSearchConfig returns the inner product search with limit 7 and threshold 2.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Operator:    OperatorInnerProduct,
		Limit:       DefaultSearchLimit,
		MaxDistance: Threshold(DefaultMaxDistance),
	}
}

// WithDefaults fills zero values from DefaultSearchConfig.
func (c SearchConfig) WithDefaults() SearchConfig {
	d := DefaultSearchConfig()
	if c.Operator == "" {
		c.Operator = d.Operator
	}
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.MaxDistance == nil {
		c.MaxDistance = d.MaxDistance
	}
	return c
}
