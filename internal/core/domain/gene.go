package domain

// GeneQuery is a single input gene symbol with its position in the
// original batch. Index drives output ordering.
type GeneQuery struct {
	Symbol string `json:"symbol"`
	Index  int    `json:"index"`
}

// ResolvedGene is the outcome of nomenclature resolution for a query.
// Created once per gene and immutable thereafter.
type ResolvedGene struct {
	Query          string  `json:"query"`
	GeneID         string  `json:"gene_id"`
	OfficialSymbol string  `json:"official_symbol"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source"`
}
