package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

func superAdmin() models.Actor {
	return models.Actor{ID: "sa", Roles: []models.Role{models.RoleAdmin}, LatestSeason: 5, Active: true}
}

func regularAdmin(latest int, roles ...models.Role) models.Actor {
	if len(roles) == 0 {
		roles = []models.Role{models.RoleBHV}
	}
	return models.Actor{ID: "ra", Roles: roles, LatestSeason: latest, Active: true}
}

func intPtr(v int) *int { return &v }

func typePtr(t models.DocumentType) *models.DocumentType { return &t }

// evaluate interprets a predicate tree against a document so tests can check
// visibility semantics instead of SQL text.
func evaluate(t *testing.T, n query.Node, doc map[string]interface{}) bool {
	t.Helper()
	switch v := n.(type) {
	case nil:
		return true
	case query.Equals:
		return doc[v.Field] == v.Value
	case query.LessEqual:
		return doc[v.Field].(int) <= v.Value.(int)
	case query.In:
		for _, val := range v.Values {
			if doc[v.Field] == val {
				return true
			}
		}
		return false
	case query.Contains:
		have, _ := doc[v.Field].([]string)
		for _, val := range v.Values {
			for _, h := range have {
				if h == val {
					return true
				}
			}
		}
		return false
	case query.ILike:
		name, _ := doc[v.Field].(string)
		pattern := strings.Trim(v.Pattern, "%")
		return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
	case query.And:
		for _, child := range v.Nodes {
			if !evaluate(t, child, doc) {
				return false
			}
		}
		return true
	case query.Or:
		if len(v.Nodes) == 0 {
			return true
		}
		for _, child := range v.Nodes {
			if evaluate(t, child, doc) {
				return true
			}
		}
		return false
	}
	t.Fatalf("unexpected node type %T", n)
	return false
}

func doc(docType models.DocumentType, season int, role string) map[string]interface{} {
	return map[string]interface{}{
		"type":   string(docType),
		"season": season,
		"role":   role,
		"labels": []string{},
		"name":   "",
	}
}

func TestSuperAdminAllSeasonsHasNoSeasonConstraint(t *testing.T) {
	node, err := ResolveDocumentScope(superAdmin(), intPtr(0), nil, 5)
	require.NoError(t, err)

	sql, args := query.ToSQL(node, 0)
	assert.Empty(t, sql)
	assert.Empty(t, args)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 1, "")))
	assert.True(t, evaluate(t, node, doc(models.DocumentTypeInternal, 99, "BTT")))
}

func TestSuperAdminAllSeasonsStudentType(t *testing.T) {
	node, err := ResolveDocumentScope(superAdmin(), intPtr(0), typePtr(models.DocumentTypeStudent), 5)
	require.NoError(t, err)

	sql, args := query.ToSQL(node, 0)
	assert.Equal(t, "type = $1", sql)
	assert.Equal(t, []interface{}{string(models.DocumentTypeStudent)}, args)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeStudent, 1, "")))
	assert.True(t, evaluate(t, node, doc(models.DocumentTypeStudent, 9, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeCommon, 1, "")))
}

func TestRegularAdminAllSeasonsDenied(t *testing.T) {
	_, err := ResolveDocumentScope(regularAdmin(3), intPtr(0), nil, 4)
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "all seasons")
}

func TestRegularAdminFutureSeasonDenied(t *testing.T) {
	_, err := ResolveDocumentScope(regularAdmin(3), intPtr(5), nil, 4)
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "season 5")
}

func TestRegularAdminPastSeasonAllowed(t *testing.T) {
	node, err := ResolveDocumentScope(regularAdmin(3), intPtr(2), nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeCommon, 2, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeCommon, 3, "")))
	assert.True(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 1, "")))
}

func TestDefaultSeasonUsesLatestForDepartmentAdmins(t *testing.T) {
	// No ADMIN role: the default scope is the actor's own latest season,
	// not the process-wide current one.
	node, err := ResolveDocumentScope(regularAdmin(3), nil, nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeCommon, 3, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeCommon, 4, "")))
}

func TestDefaultSeasonUsesCurrentForBaseAdmins(t *testing.T) {
	node, err := ResolveDocumentScope(superAdmin(), nil, nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeCommon, 4, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeCommon, 5, "")))
}

func TestAnnualVisibilityAccumulates(t *testing.T) {
	node, err := ResolveDocumentScope(regularAdmin(3), nil, nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 1, "")))
	assert.True(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 2, "")))
	assert.True(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 3, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 4, "")))
}

func TestInternalRequiresRoleMatch(t *testing.T) {
	node, err := ResolveDocumentScope(regularAdmin(3, models.RoleBHV), nil, nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeInternal, 3, models.RoleBHV)))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeInternal, 3, models.RoleBKT)))
}

func TestInternalUnrestrictedForSuperAdmins(t *testing.T) {
	node, err := ResolveDocumentScope(superAdmin(), nil, nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeInternal, 4, models.RoleBKT)))
}

func TestInactivePrivilegedActorIsNotSuperAdmin(t *testing.T) {
	actor := models.Actor{ID: "x", Roles: []models.Role{models.RoleAdmin}, LatestSeason: 5, Active: false}
	_, err := ResolveDocumentScope(actor, intPtr(0), nil, 5)
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestStudentTypeSeasonExact(t *testing.T) {
	node, err := ResolveDocumentScope(regularAdmin(3), nil, typePtr(models.DocumentTypeStudent), 4)
	require.NoError(t, err)

	sql, args := query.ToSQL(node, 0)
	assert.Equal(t, "(type = $1 AND season = $2)", sql)
	assert.Equal(t, []interface{}{string(models.DocumentTypeStudent), 3}, args)
}

func TestStudentTypeFutureSeasonDenied(t *testing.T) {
	_, err := ResolveDocumentScope(regularAdmin(3), intPtr(4), typePtr(models.DocumentTypeStudent), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "season 4")
}

func TestSuperAdminMayPinAnySeason(t *testing.T) {
	node, err := ResolveDocumentScope(superAdmin(), intPtr(9), nil, 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeCommon, 9, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeCommon, 4, "")))
}

func TestExplicitTypeNarrowsScope(t *testing.T) {
	node, err := ResolveDocumentScope(regularAdmin(3), nil, typePtr(models.DocumentTypeAnnual), 4)
	require.NoError(t, err)

	assert.True(t, evaluate(t, node, doc(models.DocumentTypeAnnual, 2, "")))
	assert.False(t, evaluate(t, node, doc(models.DocumentTypeCommon, 3, "")))
}

func TestScenarioRegularAdminDefaults(t *testing.T) {
	// roles=[BHV], latest=3, current=4, season and type unset.
	node, err := ResolveDocumentScope(regularAdmin(3, models.RoleBHV), nil, nil, 4)
	require.NoError(t, err)

	sql, args := query.ToSQL(node, 0)
	assert.Equal(t,
		"((type = $1 AND season <= $2) OR ((type = $3 OR (type = $4 AND role IN ($5))) AND season = $6))",
		sql)
	require.Len(t, args, 6)
	assert.Equal(t, string(models.DocumentTypeAnnual), args[0])
	assert.Equal(t, 3, args[1])
	assert.Equal(t, string(models.DocumentTypeCommon), args[2])
	assert.Equal(t, string(models.DocumentTypeInternal), args[3])
	assert.Equal(t, models.RoleBHV, args[4])
	assert.Equal(t, 3, args[5])
}

func TestResolveSeasonScope(t *testing.T) {
	node, err := ResolveSeasonScope(regularAdmin(3), nil, 4)
	require.NoError(t, err)
	sql, args := query.ToSQL(node, 0)
	assert.Equal(t, "season = $1", sql)
	assert.Equal(t, []interface{}{3}, args)

	node, err = ResolveSeasonScope(superAdmin(), intPtr(0), 4)
	require.NoError(t, err)
	sql, _ = query.ToSQL(node, 0)
	assert.Empty(t, sql)

	_, err = ResolveSeasonScope(regularAdmin(3), intPtr(0), 4)
	require.Error(t, err)

	_, err = ResolveSeasonScope(regularAdmin(3), intPtr(7), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "season 7")
}

func TestComposeIdentityLaw(t *testing.T) {
	base := query.Node(query.Equals{Field: "season", Value: 3})

	composed := ComposeDocumentFilter(base, "", nil, nil)
	baseSQL, baseArgs := query.ToSQL(base, 0)
	gotSQL, gotArgs := query.ToSQL(composed, 0)
	assert.Equal(t, baseSQL, gotSQL)
	assert.Equal(t, baseArgs, gotArgs)
}

func TestComposeAddsConjunctions(t *testing.T) {
	base := query.Node(query.Equals{Field: "season", Value: 3})
	composed := ComposeDocumentFilter(base, "guide", []string{"onboarding"}, []string{models.RoleBHV})

	sql, args := query.ToSQL(composed, 0)
	assert.Equal(t, "(season = $1 AND name ILIKE $2 AND labels && $3 AND role IN ($4))", sql)
	require.Len(t, args, 4)
	assert.Equal(t, "%guide%", args[1])

	d := doc(models.DocumentTypeCommon, 3, models.RoleBHV)
	d["season"] = 3
	d["name"] = "Season Guide"
	d["labels"] = []string{"onboarding"}
	assert.True(t, evaluate(t, composed, d))

	d["labels"] = []string{"other"}
	assert.False(t, evaluate(t, composed, d))
}

func TestComposeDoesNotReorderBase(t *testing.T) {
	base, err := ResolveDocumentScope(regularAdmin(3), nil, nil, 4)
	require.NoError(t, err)

	composed := ComposeDocumentFilter(base, "x", nil, nil)
	sql, _ := query.ToSQL(composed, 0)
	baseSQL, _ := query.ToSQL(base, 0)
	assert.True(t, strings.HasPrefix(sql, "("+baseSQL))
}
