package database

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ProjectSummary holds per-project aggregate counts for list views.
type ProjectSummary struct {
	ProjectID   uint
	ImageCount  int64
	PersonCount int64
}

// ProjectSummaries returns image and person counts for every project in a
// single query, keyed by project ID.
func ProjectSummaries(db *gorm.DB) (map[uint]ProjectSummary, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	queryBuilder := psql.
		Select("p.id", "COUNT(DISTINCT i.id)", "COUNT(pe.id)").
		From("projects p").
		LeftJoin("images i ON i.project_id = p.id").
		LeftJoin("people pe ON pe.image_id = i.id").
		GroupBy("p.id")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ProjectSummaries: %w", err)
	}

	rows, err := sqlDB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query project summaries: %w", err)
	}
	defer rows.Close()

	summaries := make(map[uint]ProjectSummary)
	for rows.Next() {
		var s ProjectSummary
		if err := rows.Scan(&s.ProjectID, &s.ImageCount, &s.PersonCount); err != nil {
			return nil, fmt.Errorf("failed to scan project summary row: %w", err)
		}
		summaries[s.ProjectID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project summary rows: %w", err)
	}
	return summaries, nil
}
