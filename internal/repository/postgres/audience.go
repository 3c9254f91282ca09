package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// AudienceRepo resolves campaign targeting against the platform's users
// table. Segment filters match against the jsonb attributes column.
type AudienceRepo struct{ db *sql.DB }

// NewAudienceRepo creates a Postgres-backed audience resolver.
func NewAudienceRepo(db *sql.DB) *AudienceRepo { return &AudienceRepo{db: db} }

func (a *AudienceRepo) Resolve(ctx context.Context, mode domain.TargetMode, filters map[string]string) ([]campaign.Member, error) {
	query := `SELECT id, email, COALESCE(name,''), COALESCE(attributes,'{}') FROM users WHERE subscribed = TRUE`
	args := []interface{}{}
	idx := 1

	switch mode {
	case domain.TargetAll, "":
	case domain.TargetExplicit:
		ids := strings.Split(filters["user_ids"], ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		query += fmt.Sprintf(" AND id = ANY($%d)", idx)
		args = append(args, pq.Array(ids))
		idx++
	case domain.TargetSegment:
		for k, v := range filters {
			query += fmt.Sprintf(" AND attributes->>$%d = $%d", idx, idx+1)
			args = append(args, k, v)
			idx += 2
		}
	default:
		return nil, fmt.Errorf("unknown target mode %q", mode)
	}
	query += " ORDER BY id"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	defer rows.Close()

	var members []campaign.Member
	for rows.Next() {
		var m campaign.Member
		var attrs []byte
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &attrs); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if len(attrs) > 0 {
			if jerr := json.Unmarshal(attrs, &m.MergeData); jerr != nil {
				return nil, fmt.Errorf("decode attributes: %w", jerr)
			}
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
