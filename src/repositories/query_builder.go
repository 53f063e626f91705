package repositories

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/postgres"
)

const entityColumns = "id, type, locale, status, properties, created_at, updated_at"

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Campos que são colunas da tabela e não chaves de properties.
var columnFields = map[string]string{
	"id":                  "id",
	entities.LocaleKey:    "locale",
	entities.StatusKey:    "status",
	entities.CreatedAtKey: "created_at",
	entities.UpdatedAtKey: "updated_at",
}

var comparisonOperators = map[string]string{
	domain.OpEq:   "=",
	domain.OpNeq:  "<>",
	domain.OpLike: "LIKE",
	domain.OpGt:   ">",
	domain.OpGte:  ">=",
	domain.OpLt:   "<",
	domain.OpLte:  "<=",
}

type queryBuilder struct {
	conditions []string
	args       []any
}

func (qb *queryBuilder) bind(value any) string {
	qb.args = append(qb.args, value)
	return fmt.Sprintf("$%d", len(qb.args))
}

// buildSelectQuery translates params into a SELECT over the entities of one
// type. Filter fields and operators are visited in sorted order so the same
// params always produce the same SQL.
func buildSelectQuery(entityType string, params domain.QueryParams) (string, []any, error) {
	qb := &queryBuilder{}
	qb.conditions = append(qb.conditions, "type = "+qb.bind(entityType))

	if params.Locale != "" {
		qb.conditions = append(qb.conditions, "locale = "+qb.bind(params.Locale))
	}
	if params.Status != "" {
		qb.conditions = append(qb.conditions, "status = "+qb.bind(params.Status))
	}

	fields := make([]string, 0, len(params.Filter))
	for field := range params.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if !fieldNamePattern.MatchString(field) {
			return "", nil, fmt.Errorf("invalid filter field %q: %w", field, domain.ErrInvalidArgument)
		}

		condition := params.Filter[field]
		operators := make([]string, 0, len(condition))
		for op := range condition {
			operators = append(operators, op)
		}
		sort.Strings(operators)

		for _, op := range operators {
			clause, err := qb.condition(field, op, condition[op])
			if err != nil {
				return "", nil, err
			}
			qb.conditions = append(qb.conditions, clause)
		}
	}

	orderBy, err := buildOrderBy(params.Sort)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(entityColumns)
	sb.WriteString(" FROM entities WHERE ")
	sb.WriteString(strings.Join(qb.conditions, " AND "))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)

	if params.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(qb.bind(params.Limit))
	}
	if params.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(qb.bind(params.Offset))
	}

	return sb.String(), qb.args, nil
}

func (qb *queryBuilder) condition(field string, op string, value any) (string, error) {
	column, isColumn := columnFields[field]

	if op == domain.OpIn {
		if field == "id" {
			ids, err := toIDs(value)
			if err != nil {
				return "", err
			}
			return "id = ANY(" + qb.bind(ids) + ")", nil
		}

		values, err := toStrings(value)
		if err != nil {
			return "", err
		}
		if isColumn {
			return column + " = ANY(" + qb.bind(values) + ")", nil
		}
		return propertyPath(field) + " = ANY(" + qb.bind(values) + ")", nil
	}

	sqlOp, ok := comparisonOperators[op]
	if !ok {
		return "", fmt.Errorf("unknown operator %q on %q: %w", op, field, domain.ErrInvalidArgument)
	}

	if isColumn {
		if field == "id" {
			id, ok := entities.ToID(value)
			if !ok {
				return "", fmt.Errorf("invalid id %v: %w", value, domain.ErrInvalidArgument)
			}
			value = id
		}
		return column + " " + sqlOp + " " + qb.bind(value), nil
	}

	// Igualdade em properties usa @> para aproveitar o índice GIN.
	if op == domain.OpEq {
		search, err := postgres.BuildSearchJSON(field, value)
		if err != nil {
			return "", fmt.Errorf("failed to build search JSON for %q: %w", field, err)
		}
		return "properties @> " + qb.bind(search) + "::jsonb", nil
	}

	if isNumeric(value) && op != domain.OpLike {
		return "(" + propertyPath(field) + ")::numeric " + sqlOp + " " + qb.bind(value), nil
	}
	return propertyPath(field) + " " + sqlOp + " " + qb.bind(fmt.Sprint(value)), nil
}

func buildOrderBy(sortFields []string) (string, error) {
	if len(sortFields) == 0 {
		return "id ASC", nil
	}

	parts := make([]string, 0, len(sortFields)+1)
	sortsByID := false
	for _, s := range sortFields {
		direction := "ASC"
		field := s
		if strings.HasPrefix(s, "-") {
			direction = "DESC"
			field = strings.TrimPrefix(s, "-")
		}
		if !fieldNamePattern.MatchString(field) {
			return "", fmt.Errorf("invalid sort field %q: %w", field, domain.ErrInvalidArgument)
		}

		expression := propertyPath(field)
		if column, ok := columnFields[field]; ok {
			expression = column
		}
		if field == "id" {
			sortsByID = true
		}
		parts = append(parts, expression+" "+direction)
	}

	// Desempate estável para a paginação.
	if !sortsByID {
		parts = append(parts, "id ASC")
	}
	return strings.Join(parts, ", "), nil
}

// propertyPath renders a dotted field as a text extraction from properties.
func propertyPath(field string) string {
	return "properties #>> '{" + strings.ReplaceAll(field, ".", ",") + "}'"
}

func toIDs(value any) ([]int64, error) {
	switch v := value.(type) {
	case []int64:
		return v, nil
	case []int:
		ids := make([]int64, len(v))
		for i, id := range v {
			ids[i] = int64(id)
		}
		return ids, nil
	case []any:
		ids := make([]int64, 0, len(v))
		for _, item := range v {
			id, ok := entities.ToID(item)
			if !ok {
				return nil, fmt.Errorf("invalid id %v: %w", item, domain.ErrInvalidArgument)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("the in operator on id expects a list, got %T: %w", value, domain.ErrInvalidArgument)
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		values := make([]string, len(v))
		for i, item := range v {
			values[i] = fmt.Sprint(item)
		}
		return values, nil
	}
	return nil, fmt.Errorf("the in operator expects a list, got %T: %w", value, domain.ErrInvalidArgument)
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}
