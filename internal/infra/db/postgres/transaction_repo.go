package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/infra/security"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

const transactionColumns = `id, plan_id, plan_name, plan_price, plan_currency, plan_duration, plan_duration_unit, plan_description, user_id, user_email, user_name, user_phone, amount, currency, payment_status, trx_reference_number, merchant_order_id, order_id, order_reference, masked_card, card_brand, card_data_token, signature, mode, language, created_at, updated_at, completed_at`

// transactionRepo persists the payment ledger. Card data tokens are encrypted
// at rest when an EncryptionService is configured.
type transactionRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewTransactionRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *transactionRepo {
	return &transactionRepo{pool: pool, enc: enc}
}

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  ` + transactionColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28
) ON CONFLICT (id) DO UPDATE SET
  payment_status=$15, trx_reference_number=$16, merchant_order_id=$17, order_reference=$19,
  masked_card=$20, card_brand=$21, card_data_token=$22, signature=$23, mode=$24,
  updated_at=$27, completed_at=$28;`

	token, err := r.sealToken(t.CardDataToken)
	if err != nil {
		return domain.ErrOperationFailed
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.PlanID, t.PlanName, t.PlanPrice, t.PlanCurrency, t.PlanDuration, t.PlanDurationUnit, t.PlanDescription,
		t.UserID, t.UserEmail, t.UserName, t.UserPhone,
		t.Amount, t.Currency, string(t.Status),
		t.TrxReferenceNumber, t.MerchantOrderID, t.OrderID, t.OrderReference,
		t.MaskedCard, t.CardBrand, token, t.Signature, string(t.Mode), t.Language,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return r.scanOne(row)
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	// ULIDs sort by creation time, so id DESC keeps the lookup deterministic
	// if a reference was ever issued twice.
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE trx_reference_number=$1 ORDER BY id DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, reference)
	if err != nil {
		return nil, err
	}
	return r.scanOne(row)
}

func (r *transactionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id=$1 OR merchant_order_id=$1 ORDER BY (order_id=$1) DESC, id DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return r.scanOne(row)
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *transactionRepo) LastSuccessfulByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id=$1 AND payment_status='success' ORDER BY completed_at DESC NULLS LAST LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return r.scanOne(row)
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, fields *model.GatewayFields, completedAt *time.Time) error {
	if fields == nil {
		fields = &model.GatewayFields{}
	}
	token, err := r.sealToken(fields.CardDataToken)
	if err != nil {
		return domain.ErrOperationFailed
	}
	// Empty callback values never overwrite what checkout stored.
	const q = `
UPDATE transactions SET
  payment_status=$2,
  trx_reference_number=COALESCE(NULLIF($3,''), trx_reference_number),
  merchant_order_id=COALESCE(NULLIF($4,''), merchant_order_id),
  order_reference=COALESCE(NULLIF($5,''), order_reference),
  masked_card=COALESCE(NULLIF($6,''), masked_card),
  card_brand=COALESCE(NULLIF($7,''), card_brand),
  card_data_token=COALESCE(NULLIF($8,''), card_data_token),
  signature=COALESCE(NULLIF($9,''), signature),
  mode=COALESCE(NULLIF($10,''), mode),
  completed_at=COALESCE($11, completed_at),
  updated_at=NOW()
WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status),
		fields.TrxReferenceNumber, fields.MerchantOrderID, fields.OrderReference,
		fields.MaskedCard, fields.CardBrand, token, fields.Signature, string(fields.Mode),
		completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *transactionRepo) ListSuccessfulUnactivated(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT ` + prefixColumns("t.") + `
  FROM transactions t
 WHERE t.payment_status='success'
   AND t.completed_at < $1
   AND NOT EXISTS (
     SELECT 1 FROM accounts a
      WHERE a.id = t.user_id
        AND a.subscription_history @> jsonb_build_array(jsonb_build_object('transactionId', t.id))
   )
 ORDER BY t.completed_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *transactionRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM transactions WHERE payment_status='success' AND completed_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *transactionRepo) scanOne(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	var status, mode string
	if err := row.Scan(
		&t.ID, &t.PlanID, &t.PlanName, &t.PlanPrice, &t.PlanCurrency, &t.PlanDuration, &t.PlanDurationUnit, &t.PlanDescription,
		&t.UserID, &t.UserEmail, &t.UserName, &t.UserPhone,
		&t.Amount, &t.Currency, &status,
		&t.TrxReferenceNumber, &t.MerchantOrderID, &t.OrderID, &t.OrderReference,
		&t.MaskedCard, &t.CardBrand, &t.CardDataToken, &t.Signature, &mode, &t.Language,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	t.Status = model.PaymentStatus(status)
	t.Mode = model.GatewayMode(mode)
	t.CardDataToken = r.openToken(t.CardDataToken)
	return t, nil
}

func (r *transactionRepo) scanMany(rows pgx.Rows) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for rows.Next() {
		t := &model.Transaction{}
		var status, mode string
		if err := rows.Scan(
			&t.ID, &t.PlanID, &t.PlanName, &t.PlanPrice, &t.PlanCurrency, &t.PlanDuration, &t.PlanDurationUnit, &t.PlanDescription,
			&t.UserID, &t.UserEmail, &t.UserName, &t.UserPhone,
			&t.Amount, &t.Currency, &status,
			&t.TrxReferenceNumber, &t.MerchantOrderID, &t.OrderID, &t.OrderReference,
			&t.MaskedCard, &t.CardBrand, &t.CardDataToken, &t.Signature, &mode, &t.Language,
			&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
		); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		t.Status = model.PaymentStatus(status)
		t.Mode = model.GatewayMode(mode)
		t.CardDataToken = r.openToken(t.CardDataToken)
		out = append(out, t)
	}
	return out, nil
}

func (r *transactionRepo) sealToken(token string) (string, error) {
	if token == "" || r.enc == nil {
		return token, nil
	}
	return r.enc.Encrypt(token)
}

// openToken best-effort decrypts; rows written before encryption was enabled
// come back as stored.
func (r *transactionRepo) openToken(token string) string {
	if token == "" || r.enc == nil {
		return token
	}
	if pt, err := r.enc.Decrypt(token); err == nil {
		return pt
	}
	return token
}

func prefixColumns(prefix string) string {
	cols := strings.Split(transactionColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
