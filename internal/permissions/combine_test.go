package permissions

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinePredicates(t *testing.T) {
	own := sq.Eq{"owner_id": 1}
	published := sq.Eq{"published": true}

	t.Run("single predicate passes through", func(t *testing.T) {
		pred := CombineAny.Predicates([]sq.Sqlizer{own})

		sql, args, err := pred.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "owner_id = ?", sql)
		assert.Equal(t, []any{1}, args)
	})

	t.Run("any unions with OR", func(t *testing.T) {
		pred := CombineAny.Predicates([]sq.Sqlizer{own, published})

		sql, _, err := pred.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "(owner_id = ? OR published = ?)", sql)
	})

	t.Run("all intersects with AND", func(t *testing.T) {
		pred := CombineAll.Predicates([]sq.Sqlizer{own, published})

		sql, _, err := pred.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "(owner_id = ? AND published = ?)", sql)
	})
}

func TestCombineBooleans(t *testing.T) {
	tests := []struct {
		name    string
		combine Combine
		results []bool
		want    bool
	}{
		{"any passes with one true", CombineAny, []bool{false, true}, true},
		{"any fails with all false", CombineAny, []bool{false, false}, false},
		{"any fails empty", CombineAny, nil, false},
		{"all passes with all true", CombineAll, []bool{true, true}, true},
		{"all fails with one false", CombineAll, []bool{true, false}, false},
		{"all fails empty", CombineAll, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.combine.Booleans(tt.results))
		})
	}
}
