package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const paymentColumns = `id, user_id, provider, kind, merchant_reference, provider_reference,
	gross_amount, provider_fee, platform_commission, net_amount, status, phone_number,
	failure_reason, created_at, updated_at, completed_at`

func (r *repos) CreatePayment(ctx context.Context, p *relationaldb.PaymentTransaction) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO payment_transactions (user_id, provider, kind, merchant_reference, provider_reference,
			gross_amount, provider_fee, platform_commission, net_amount, status, phone_number,
			failure_reason, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Provider, string(p.Kind), p.MerchantReference, p.ProviderReference,
		p.GrossAmount.String(), p.ProviderFee.String(), p.PlatformCommission.String(),
		p.NetAmount.String(), string(p.Status), p.PhoneNumber,
		p.FailureReason, p.CreatedAt, p.UpdatedAt, nullTime(p.CompletedAt))
	if err != nil {
		return 0, classifyExecError("create_payment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("create_payment", "failed to read inserted ID", err)
	}
	p.ID = id
	return id, nil
}

func (r *repos) GetPayment(ctx context.Context, id int64) (*relationaldb.PaymentTransaction, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payment_transactions WHERE id = ?", id)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrPaymentNotFound
	}
	return p, err
}

// GetPaymentByReferenceForUpdate is the webhook reconciler's idempotency
// pivot: one row per (provider, merchant_reference).
func (r *repos) GetPaymentByReferenceForUpdate(ctx context.Context, provider, merchantReference string) (*relationaldb.PaymentTransaction, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payment_transactions WHERE provider = ? AND merchant_reference = ?",
		provider, merchantReference)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrPaymentNotFound
	}
	return p, err
}

func (r *repos) UpdatePayment(ctx context.Context, p *relationaldb.PaymentTransaction) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE payment_transactions SET provider_reference = ?, status = ?, failure_reason = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?`,
		p.ProviderReference, string(p.Status), p.FailureReason,
		p.UpdatedAt, nullTime(p.CompletedAt), p.ID)
	if err != nil {
		return classifyExecError("update_payment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrPaymentNotFound
	}
	return nil
}

func (r *repos) ListPendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*relationaldb.PaymentTransaction, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payment_transactions
		WHERE status IN ('PENDING','PROCESSING') AND created_at <= ?
		ORDER BY id LIMIT ?`,
		olderThan, limit)
	if err != nil {
		return nil, classifyExecError("list_pending_payments", err)
	}
	defer rows.Close()

	var payments []*relationaldb.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_pending_payments", "row iteration failed", err)
	}
	return payments, nil
}

func scanPayment(scan func(...interface{}) error) (*relationaldb.PaymentTransaction, error) {
	var (
		p                          relationaldb.PaymentTransaction
		kind, status               string
		gross, provFee, commission string
		net                        string
		completedAt                sql.NullTime
	)
	err := scan(&p.ID, &p.UserID, &p.Provider, &kind, &p.MerchantReference, &p.ProviderReference,
		&gross, &provFee, &commission, &net, &status, &p.PhoneNumber,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("scan_payment", "failed to scan payment row", err)
	}

	if p.GrossAmount, err = parseAmount("scan_payment", gross); err != nil {
		return nil, err
	}
	if p.ProviderFee, err = parseAmount("scan_payment", provFee); err != nil {
		return nil, err
	}
	if p.PlatformCommission, err = parseAmount("scan_payment", commission); err != nil {
		return nil, err
	}
	if p.NetAmount, err = parseAmount("scan_payment", net); err != nil {
		return nil, err
	}
	p.Kind = relationaldb.PaymentKind(kind)
	p.Status = relationaldb.PaymentStatus(status)
	p.CompletedAt = timePtr(completedAt)
	return &p, nil
}
