package repo

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/crucial707/trakset/internal/models"
)

// searchLimit caps how many ranked matches a search returns.
const searchLimit = 50

var pg = goqu.Dialect("postgres")

// searchQuery builds the trigram similarity query over active assets.
func searchQuery(term string, threshold float64) (string, []any, error) {
	similarity := goqu.L("similarity(a.name, ?)", term)

	return pg.From(goqu.T("assets").As("a")).
		LeftJoin(goqu.T("asset_types").As("t"), goqu.On(goqu.Ex{"t.id": goqu.I("a.asset_type_id")})).
		LeftJoin(goqu.T("locations").As("l"), goqu.On(goqu.Ex{"l.id": goqu.I("a.location_id")})).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("a.current_holder_id")})).
		Select(
			"a.id", "a.unique_id", "a.name", "a.description", "a.serial_number", "a.security_tag_number",
			"a.asset_type_id", "a.status_code", "a.location_id", "a.current_holder_id", "a.created_at", "a.updated_at",
			"a.is_deleted", "a.deleted_at", "a.restored_at",
			goqu.COALESCE(goqu.I("t.name"), ""),
			goqu.COALESCE(goqu.I("l.name"), ""),
			goqu.COALESCE(goqu.I("u.username"), ""),
			similarity.As("similarity"),
		).
		Where(
			goqu.I("a.is_deleted").IsFalse(),
			goqu.L("similarity(a.name, ?) > ?", term, threshold),
		).
		Order(goqu.C("similarity").Desc(), goqu.I("a.id").Asc()).
		Limit(searchLimit).
		Prepared(true).
		ToSQL()
}

// SearchAssets ranks active assets by pg_trgm similarity of their name to
// term, best first, keeping matches above threshold.
func (s *Store) SearchAssets(ctx context.Context, term string, threshold float64) ([]models.AssetMatch, error) {
	query, args, err := searchQuery(term, threshold)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.AssetMatch
	for rows.Next() {
		var score float64
		a, err := scanAsset(rows, &score)
		if err != nil {
			return nil, err
		}
		matches = append(matches, models.AssetMatch{Asset: *a, Similarity: score})
	}
	return matches, rows.Err()
}
