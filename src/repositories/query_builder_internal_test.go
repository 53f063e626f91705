package repositories

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelrepo/src/domain"
)

var _ = Describe("buildSelectQuery", func() {
	const selectEntities = "SELECT id, type, locale, status, properties, created_at, updated_at FROM entities WHERE "

	DescribeTable("translating query params",
		func(params domain.QueryParams, expectedSQL string, expectedArgs []any) {
			// ACT
			sql, args, err := buildSelectQuery("product", params)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(sql).To(Equal(selectEntities + expectedSQL))
			Expect(args).To(Equal(expectedArgs))
		},
		Entry("no params",
			domain.QueryParams{},
			"type = $1 ORDER BY id ASC",
			[]any{"product"},
		),
		Entry("ids in a set",
			domain.QueryParams{Filter: domain.IDsFilter([]int64{1, 2, 3})},
			"type = $1 AND id = ANY($2) ORDER BY id ASC",
			[]any{"product", []int64{1, 2, 3}},
		),
		Entry("locale and status",
			domain.QueryParams{FetchOptions: domain.FetchOptions{Locale: "pt-BR", Status: "active"}},
			"type = $1 AND locale = $2 AND status = $3 ORDER BY id ASC",
			[]any{"product", "pt-BR", "active"},
		),
		Entry("property equality uses containment",
			domain.QueryParams{Filter: domain.Filter{"brand.name": domain.Condition{domain.OpEq: "Acme"}}},
			"type = $1 AND properties @> $2::jsonb ORDER BY id ASC",
			[]any{"product", `{"brand":{"name":"Acme"}}`},
		),
		Entry("numeric range on a property",
			domain.QueryParams{Filter: domain.Filter{"price": domain.Condition{domain.OpGte: 10, domain.OpLt: 20}}},
			"type = $1 AND (properties #>> '{price}')::numeric >= $2 AND (properties #>> '{price}')::numeric < $3 ORDER BY id ASC",
			[]any{"product", 10, 20},
		),
		Entry("like on a property",
			domain.QueryParams{Filter: domain.Filter{"name": domain.Condition{domain.OpLike: "Wid%"}}},
			"type = $1 AND properties #>> '{name}' LIKE $2 ORDER BY id ASC",
			[]any{"product", "Wid%"},
		),
		Entry("sort, limit and offset",
			domain.QueryParams{Sort: []string{"-price", "name"}, Limit: 10, Offset: 20},
			"type = $1 ORDER BY properties #>> '{price}' DESC, properties #>> '{name}' ASC, id ASC LIMIT $2 OFFSET $3",
			[]any{"product", 10, 20},
		),
		Entry("sort by a column",
			domain.QueryParams{Sort: []string{"-id"}},
			"type = $1 ORDER BY id DESC",
			[]any{"product"},
		),
	)

	DescribeTable("rejecting bad params",
		func(params domain.QueryParams) {
			// ACT
			_, _, err := buildSelectQuery("product", params)

			// ASSERT
			Expect(err).To(MatchError(domain.ErrInvalidArgument))
		},
		Entry("unknown operator", domain.QueryParams{Filter: domain.Filter{"name": domain.Condition{"regex": ".*"}}}),
		Entry("injected field", domain.QueryParams{Filter: domain.Filter{"name'; DROP TABLE entities; --": domain.Condition{domain.OpEq: 1}}}),
		Entry("injected sort", domain.QueryParams{Sort: []string{"name desc; --"}}),
		Entry("in without a list", domain.QueryParams{Filter: domain.Filter{"id": domain.Condition{domain.OpIn: 3}}}),
	)
})
