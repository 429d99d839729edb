package sqlite

import (
	"context"
	"time"

	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

func (r *repos) CreateInteraction(ctx context.Context, i *relationaldb.Interaction) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO interactions (user_id, boom_id, action, channel, impact, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.UserID, i.BoomID, i.Action, i.Channel, i.Impact.String(), i.CreatedAt)
	if err != nil {
		return 0, classifyExecError("create_interaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("create_interaction", "failed to read inserted ID", err)
	}
	i.ID = id
	return id, nil
}

// CountRecentInteractions backs the anti-replay window: same user, same
// BOOM, same action since the cutoff.
func (r *repos) CountRecentInteractions(ctx context.Context, userID, boomID int64, action string, since time.Time) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}
	var count int64
	err = ex.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM interactions
		WHERE user_id = ? AND boom_id = ? AND action = ? AND created_at >= ?`,
		userID, boomID, action, since).Scan(&count)
	if err != nil {
		return 0, relationaldb.NewQueryError("count_recent_interactions", "failed to count interactions", err)
	}
	return count, nil
}

// CountBoomShares feeds event detection (viral and trending windows).
func (r *repos) CountBoomShares(ctx context.Context, boomID int64, since time.Time) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}
	var count int64
	err = ex.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM interactions
		WHERE boom_id = ? AND action IN ('share', 'share_internal') AND created_at >= ?`,
		boomID, since).Scan(&count)
	if err != nil {
		return 0, relationaldb.NewQueryError("count_boom_shares", "failed to count shares", err)
	}
	return count, nil
}
