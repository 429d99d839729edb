package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const boomColumns = `id, token_id, name, base_price, current_social_value, applied_micro_value,
	accumulator, palier_threshold, palier_level, treasury_pool, redistribution_pool,
	buy_count, sell_count, share_count, share_count_24h, interaction_count,
	active_event, event_expires_at, owner_id, max_editions, current_edition,
	available_editions, unique_holders, is_active, created_at, updated_at, last_interaction_at`

func (r *repos) CreateBoom(ctx context.Context, boom *inventory.Boom) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	s := &boom.Social
	res, err := ex.ExecContext(ctx, `
		INSERT INTO booms (token_id, name, base_price, current_social_value, applied_micro_value,
			accumulator, palier_threshold, palier_level, treasury_pool, redistribution_pool,
			buy_count, sell_count, share_count, share_count_24h, interaction_count,
			active_event, event_expires_at, owner_id, max_editions, current_edition,
			available_editions, unique_holders, is_active, created_at, updated_at, last_interaction_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		boom.TokenID, boom.Name, s.BasePrice.String(), s.CurrentSocialValue.String(),
		s.AppliedMicroValue.String(), s.Accumulator.String(), s.PalierThreshold.String(),
		s.PalierLevel, s.TreasuryPool.String(), s.RedistributionPool.String(),
		s.BuyCount, s.SellCount, s.ShareCount, s.ShareCount24h, s.InteractionCount,
		string(s.ActiveEvent), nullZeroTime(s.EventExpiresAt), nullInt(boom.OwnerID),
		boom.MaxEditions, boom.CurrentEdition, boom.AvailableEditions, boom.UniqueHolders,
		boolInt(boom.IsActive), boom.CreatedAt, boom.UpdatedAt, nullZeroTime(s.LastInteractionAt))
	if err != nil {
		return 0, classifyExecError("create_boom", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("create_boom", "failed to read inserted ID", err)
	}
	boom.ID = id
	return id, nil
}

func (r *repos) GetBoom(ctx context.Context, id int64) (*inventory.Boom, error) {
	return r.getBoomWhere(ctx, "id = ?", id)
}

func (r *repos) GetBoomForUpdate(ctx context.Context, id int64) (*inventory.Boom, error) {
	return r.getBoomWhere(ctx, "id = ?", id)
}

func (r *repos) GetBoomByToken(ctx context.Context, tokenID string) (*inventory.Boom, error) {
	return r.getBoomWhere(ctx, "token_id = ?", tokenID)
}

func (r *repos) getBoomWhere(ctx context.Context, where string, arg interface{}) (*inventory.Boom, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx, "SELECT "+boomColumns+" FROM booms WHERE "+where, arg)
	boom, err := scanBoom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrBoomNotFound
	}
	return boom, err
}

func (r *repos) UpdateBoom(ctx context.Context, boom *inventory.Boom) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}

	s := &boom.Social
	res, err := ex.ExecContext(ctx, `
		UPDATE booms SET
			name = ?, current_social_value = ?, applied_micro_value = ?, accumulator = ?,
			palier_threshold = ?, palier_level = ?, treasury_pool = ?, redistribution_pool = ?,
			buy_count = ?, sell_count = ?, share_count = ?, share_count_24h = ?, interaction_count = ?,
			active_event = ?, event_expires_at = ?, owner_id = ?, current_edition = ?,
			available_editions = ?, unique_holders = ?, is_active = ?, updated_at = ?, last_interaction_at = ?
		WHERE id = ?`,
		boom.Name, s.CurrentSocialValue.String(), s.AppliedMicroValue.String(), s.Accumulator.String(),
		s.PalierThreshold.String(), s.PalierLevel, s.TreasuryPool.String(), s.RedistributionPool.String(),
		s.BuyCount, s.SellCount, s.ShareCount, s.ShareCount24h, s.InteractionCount,
		string(s.ActiveEvent), nullZeroTime(s.EventExpiresAt), nullInt(boom.OwnerID),
		boom.CurrentEdition, boom.AvailableEditions, boom.UniqueHolders,
		boolInt(boom.IsActive), boom.UpdatedAt, nullZeroTime(s.LastInteractionAt), boom.ID)
	if err != nil {
		return classifyExecError("update_boom", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrBoomNotFound
	}
	return nil
}

func (r *repos) ListActiveBooms(ctx context.Context, limit, offset int) ([]*inventory.Boom, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx,
		"SELECT "+boomColumns+" FROM booms WHERE is_active = 1 ORDER BY id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, classifyExecError("list_active_booms", err)
	}
	defer rows.Close()

	var booms []*inventory.Boom
	for rows.Next() {
		boom, err := scanBoom(rows.Scan)
		if err != nil {
			return nil, err
		}
		booms = append(booms, boom)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_active_booms", "row iteration failed", err)
	}
	return booms, nil
}

// scanBoom reads one booms row through the given scan function so it
// works for both *sql.Row and *sql.Rows.
func scanBoom(scan func(...interface{}) error) (*inventory.Boom, error) {
	var (
		b               inventory.Boom
		s               socialvalue.State
		basePrice       string
		currentSocial   string
		appliedMicro    string
		accumulator     string
		palierThreshold string
		treasuryPool    string
		redistPool      string
		activeEvent     string
		eventExpires    sql.NullTime
		ownerID         sql.NullInt64
		isActive        int64
		lastInteraction sql.NullTime
	)

	err := scan(&b.ID, &b.TokenID, &b.Name, &basePrice, &currentSocial, &appliedMicro,
		&accumulator, &palierThreshold, &s.PalierLevel, &treasuryPool, &redistPool,
		&s.BuyCount, &s.SellCount, &s.ShareCount, &s.ShareCount24h, &s.InteractionCount,
		&activeEvent, &eventExpires, &ownerID, &b.MaxEditions, &b.CurrentEdition,
		&b.AvailableEditions, &b.UniqueHolders, &isActive, &b.CreatedAt, &b.UpdatedAt, &lastInteraction)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("scan_boom", "failed to scan boom row", err)
	}

	if s.BasePrice, err = parseAmount("scan_boom", basePrice); err != nil {
		return nil, err
	}
	if s.CurrentSocialValue, err = parseAmount("scan_boom", currentSocial); err != nil {
		return nil, err
	}
	if s.AppliedMicroValue, err = parseAmount("scan_boom", appliedMicro); err != nil {
		return nil, err
	}
	if s.Accumulator, err = parseAmount("scan_boom", accumulator); err != nil {
		return nil, err
	}
	if s.PalierThreshold, err = parseAmount("scan_boom", palierThreshold); err != nil {
		return nil, err
	}
	if s.TreasuryPool, err = parseAmount("scan_boom", treasuryPool); err != nil {
		return nil, err
	}
	if s.RedistributionPool, err = parseAmount("scan_boom", redistPool); err != nil {
		return nil, err
	}
	s.ActiveEvent = socialvalue.EventKind(activeEvent)
	if eventExpires.Valid {
		s.EventExpiresAt = eventExpires.Time
	}
	if lastInteraction.Valid {
		s.LastInteractionAt = lastInteraction.Time
	}
	s.CreatedAt = b.CreatedAt

	b.Social = s
	b.OwnerID = intPtr(ownerID)
	b.IsActive = isActive != 0
	return &b, nil
}
