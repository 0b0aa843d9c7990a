package model

type RetrievalMethod string

const (
	RetrievalMethodKey      RetrievalMethod = "key"
	RetrievalMethodVector   RetrievalMethod = "vector"
	RetrievalMethodGraph    RetrievalMethod = "graph"
	RetrievalMethodLanguage RetrievalMethod = "language"
)

// SearchResult is one ranked row of a vector search
type SearchResult struct {
	Entity          Instance        `json:"entity"`
	Distance        float64         `json:"distance"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
}

// ResolvedEntity is an entity found by name without knowing its type
type ResolvedEntity struct {
	Type   *EntityType `json:"-"`
	Label  string      `json:"label"`
	Name   string      `json:"name"`
	Entity Instance    `json:"entity"`
}
