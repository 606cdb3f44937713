package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualsCompile(t *testing.T) {
	sql, args := ToSQL(Equals{Field: "type", Value: "ANNUAL"}, 0)
	assert.Equal(t, "type = $1", sql)
	assert.Equal(t, []interface{}{"ANNUAL"}, args)
}

func TestLessEqualCompile(t *testing.T) {
	sql, args := ToSQL(LessEqual{Field: "season", Value: 3}, 0)
	assert.Equal(t, "season <= $1", sql)
	assert.Equal(t, []interface{}{3}, args)
}

func TestInCompile(t *testing.T) {
	sql, args := ToSQL(StringsIn("role", []string{"BHV", "BKT"}), 0)
	assert.Equal(t, "role IN ($1, $2)", sql)
	assert.Len(t, args, 2)
}

func TestInEmptyMatchesNothing(t *testing.T) {
	sql, args := ToSQL(In{Field: "role"}, 0)
	assert.Equal(t, "FALSE", sql)
	assert.Empty(t, args)
}

func TestILikeCompile(t *testing.T) {
	sql, args := ToSQL(ILike{Field: "name", Pattern: "%guide%"}, 0)
	assert.Equal(t, "name ILIKE $1", sql)
	assert.Equal(t, []interface{}{"%guide%"}, args)
}

func TestNestedCompileAndArgNumbering(t *testing.T) {
	node := NewOr(
		NewAnd(
			Equals{Field: "type", Value: "ANNUAL"},
			LessEqual{Field: "season", Value: 3},
		),
		NewAnd(
			NewOr(
				Equals{Field: "type", Value: "COMMON"},
				NewAnd(
					Equals{Field: "type", Value: "INTERNAL"},
					StringsIn("role", []string{"BHV"}),
				),
			),
			Equals{Field: "season", Value: 3},
		),
	)

	sql, args := ToSQL(node, 0)
	assert.Equal(t,
		"((type = $1 AND season <= $2) OR ((type = $3 OR (type = $4 AND role IN ($5))) AND season = $6))",
		sql)
	require.Len(t, args, 6)
	assert.Equal(t, "ANNUAL", args[0])
	assert.Equal(t, 3, args[1])
	assert.Equal(t, 3, args[5])
}

func TestArgOffset(t *testing.T) {
	sql, args := ToSQL(NewAnd(Equals{Field: "season", Value: 4}, Equals{Field: "type", Value: "COMMON"}), 2)
	assert.Equal(t, "(season = $3 AND type = $4)", sql)
	assert.Len(t, args, 2)
}

func TestSingleChildUnwrapped(t *testing.T) {
	sql, _ := ToSQL(NewAnd(Equals{Field: "season", Value: 1}), 0)
	assert.Equal(t, "season = $1", sql)
}

func TestEmptyNodesCompileToNothing(t *testing.T) {
	sql, args := ToSQL(NewAnd(), 0)
	assert.Empty(t, sql)
	assert.Empty(t, args)

	sql, args = ToSQL(NewAnd(NewOr(), NewAnd()), 0)
	assert.Empty(t, sql)
	assert.Empty(t, args)
}

func TestEmptyChildrenSkipped(t *testing.T) {
	sql, args := ToSQL(NewAnd(NewOr(), Equals{Field: "season", Value: 2}), 0)
	assert.Equal(t, "season = $1", sql)
	assert.Len(t, args, 1)
}
