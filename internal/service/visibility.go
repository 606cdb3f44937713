package service

import (
	"fmt"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

// Season scoping rules for documents:
//
//   - ANNUAL documents accumulate: anything up to and including the
//     effective season stays visible.
//   - COMMON and INTERNAL documents are season-exact; INTERNAL additionally
//     requires a role match unless the actor holds a privileged role.
//   - STUDENT documents are season-exact without the type split.
//   - A requested season of zero means "all seasons" and is reserved for
//     privileged actors.
//
// The effective season prefers an explicit, permitted request over the
// actor's default. A request above the actor's latest season is rejected,
// never clamped.

// AllSeasons is the sentinel season meaning "no season restriction".
const AllSeasons = 0

// ResolveDocumentScope decides whether the actor may list documents for the
// requested season and type, and builds the matching filter predicate.
// currentSeason is injected so callers control the process-wide season
// snapshot.
func ResolveDocumentScope(actor models.Actor, season *int, docType *models.DocumentType, currentSeason int) (query.Node, error) {
	isSuper := actor.IsSuperAdmin()
	defaultSeason := actor.LatestSeason
	if actor.HasRole(models.RoleAdmin) {
		defaultSeason = currentSeason
	}

	if !isSuper && season != nil && *season == AllSeasons {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to all seasons")
	}

	var typeEq query.Node
	if docType != nil {
		typeEq = query.Equals{Field: "type", Value: string(*docType)}
	}

	if docType != nil && *docType == models.DocumentTypeStudent {
		if isSuper && season != nil && *season == AllSeasons {
			return typeEq, nil
		}
		if isSuper || season == nil || *season <= actor.LatestSeason {
			eff := effectiveSeason(season, actor, isSuper, defaultSeason)
			return query.NewAnd(typeEq, query.Equals{Field: "season", Value: eff}), nil
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", *season))
	}

	if isSuper && season != nil && *season == AllSeasons {
		if typeEq != nil {
			return typeEq, nil
		}
		return query.NewAnd(), nil
	}

	if isSuper || season == nil || *season <= actor.LatestSeason {
		eff := effectiveSeason(season, actor, isSuper, defaultSeason)

		internal := query.Node(query.Equals{Field: "type", Value: string(models.DocumentTypeInternal)})
		if !isSuper {
			internal = query.NewAnd(internal, query.StringsIn("role", actor.Roles))
		}

		scope := query.NewOr(
			query.NewAnd(
				query.Equals{Field: "type", Value: string(models.DocumentTypeAnnual)},
				query.LessEqual{Field: "season", Value: eff},
			),
			query.NewAnd(
				query.NewOr(
					query.Equals{Field: "type", Value: string(models.DocumentTypeCommon)},
					internal,
				),
				query.Equals{Field: "season", Value: eff},
			),
		)
		return query.NewAnd(typeEq, scope), nil
	}

	return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", *season))
}

// ResolveSeasonScope is the season gate for season-exact entities without a
// document-type split (subjects, general tasks). The same precedence rules
// apply: all-seasons is privileged-only, explicit permitted seasons win over
// the default, and an out-of-range season is rejected.
func ResolveSeasonScope(actor models.Actor, season *int, currentSeason int) (query.Node, error) {
	eff, err := ResolveSeasonNumber(actor, season, currentSeason)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return query.NewAnd(), nil
	}
	return query.Equals{Field: "season", Value: *eff}, nil
}

// ResolveSeasonNumber applies the season gate and returns the effective
// season, or nil when a privileged actor requested all seasons.
func ResolveSeasonNumber(actor models.Actor, season *int, currentSeason int) (*int, error) {
	isSuper := actor.IsSuperAdmin()
	defaultSeason := actor.LatestSeason
	if actor.HasRole(models.RoleAdmin) {
		defaultSeason = currentSeason
	}

	if season != nil && *season == AllSeasons {
		if isSuper {
			return nil, nil
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to all seasons")
	}

	if isSuper || season == nil || *season <= actor.LatestSeason {
		eff := effectiveSeason(season, actor, isSuper, defaultSeason)
		return &eff, nil
	}

	return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", *season))
}

// effectiveSeason picks the explicit season when it is present and
// permitted, otherwise the actor's default.
func effectiveSeason(season *int, actor models.Actor, isSuper bool, defaultSeason int) int {
	if season != nil && *season != AllSeasons && (*season <= actor.LatestSeason || isSuper) {
		return *season
	}
	return defaultSeason
}

// ComposeDocumentFilter layers the caller-supplied search, label and role
// filters onto the scope predicate. Every addition is a pure conjunction;
// empty inputs leave the base untouched.
func ComposeDocumentFilter(base query.Node, search string, labels, roles []string) query.Node {
	nodes := []query.Node{}
	if base != nil {
		nodes = append(nodes, base)
	}
	if search != "" {
		nodes = append(nodes, query.ILike{Field: "name", Pattern: "%" + search + "%"})
	}
	if len(labels) > 0 {
		nodes = append(nodes, query.Contains{Field: "labels", Values: labels})
	}
	if len(roles) > 0 {
		nodes = append(nodes, query.StringsIn("role", roles))
	}
	return query.NewAnd(nodes...)
}
