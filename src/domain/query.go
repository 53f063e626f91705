package domain

// Operadores aceitos dentro de uma Condition.
const (
	OpEq   = "eq"
	OpNeq  = "neq"
	OpIn   = "in"
	OpLike = "like"
	OpGt   = "gt"
	OpGte  = "gte"
	OpLt   = "lt"
	OpLte  = "lte"
)

// Condition maps an operator to its operand, e.g. {"in": []int64{1, 2}}.
type Condition map[string]any

// Filter maps a field name to the conditions applied to it.
type Filter map[string]Condition

// IDsFilter builds the {id: {in: ids}} filter used to fetch many records by id.
func IDsFilter(ids []int64) Filter {
	return Filter{"id": Condition{OpIn: ids}}
}

// FetchOptions são os parâmetros comuns a qualquer leitura.
type FetchOptions struct {
	Include []string
	Locale  string
	Status  string
}

// QueryParams describes a filtered, sorted and paginated read. Sort entries
// prefixed with "-" are descending. A zero Limit means no limit.
type QueryParams struct {
	Filter Filter
	Offset int
	Limit  int
	Sort   []string
	FetchOptions
}
