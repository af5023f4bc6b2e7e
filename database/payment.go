package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/pagadorhq/pagador/internal/apierror"
	"github.com/pagadorhq/pagador/model"
)

const paymentColumns = `transaction_id, merchant, amount, currency, payer, payment_methods, status,
		response_code, response_message, external_reference, description, notification_url,
		allow_commerce_pan_token, from_batch, is_force,
		notification_sent, notification_sent_at, processed_at, paid_at, accredited_at,
		meta_data, created_at, updated_at`

func (d Datasource) RecordPayment(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	merchantJSON, err := json.Marshal(payment.Merchant)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal merchant", err)
	}
	payerJSON, err := json.Marshal(payment.Payer)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal payer", err)
	}
	methodsJSON, err := json.Marshal(payment.PaymentMethods)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal payment methods", err)
	}
	metaDataJSON, err := json.Marshal(payment.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO payments(transaction_id,merchant,merchant_id,amount,currency,payer,payment_methods,status,response_code,response_message,external_reference,description,notification_url,allow_commerce_pan_token,from_batch,is_force,notification_sent,notification_sent_at,processed_at,paid_at,accredited_at,meta_data,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		payment.TransactionID, merchantJSON, payment.Merchant.ID, payment.Amount, payment.Currency, payerJSON, methodsJSON, payment.Status,
		payment.ResponseCode, payment.ResponseMessage, payment.ExternalReference, payment.Description, payment.NotificationURL,
		payment.Attributes.AllowCommercePanToken, payment.Attributes.FromBatch, payment.Attributes.IsForce,
		payment.NotificationSent, payment.NotificationSentAt, payment.ProcessedAt, payment.PaidAt, payment.AccreditedAt,
		metaDataJSON, payment.CreatedAt, payment.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Payment with transaction ID '%s' already exists", payment.TransactionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record payment", err)
	}

	return payment, nil
}

func (d Datasource) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE transaction_id = $1
	`, id)

	payment, err := scanPayment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payment with transaction ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment", err)
	}
	return payment, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	payment := &model.Payment{}
	var merchantJSON, payerJSON, methodsJSON, metaDataJSON []byte

	err := row.Scan(
		&payment.TransactionID, &merchantJSON, &payment.Amount, &payment.Currency, &payerJSON, &methodsJSON, &payment.Status,
		&payment.ResponseCode, &payment.ResponseMessage, &payment.ExternalReference, &payment.Description, &payment.NotificationURL,
		&payment.Attributes.AllowCommercePanToken, &payment.Attributes.FromBatch, &payment.Attributes.IsForce,
		&payment.NotificationSent, &payment.NotificationSentAt, &payment.ProcessedAt, &payment.PaidAt, &payment.AccreditedAt,
		&metaDataJSON, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(merchantJSON, &payment.Merchant); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payerJSON, &payment.Payer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(methodsJSON, &payment.PaymentMethods); err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &payment.MetaData); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

func (d Datasource) GetAllPayments(ctx context.Context, filter PaymentFilter, page, limit int) ([]*model.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	where, args := buildPaymentFilter(filter)

	var total int64
	err := d.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count payments", err)
	}

	query := `
		SELECT ` + paymentColumns + `
		FROM payments` + where + `
		ORDER BY created_at DESC
		LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payments", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []*model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payment", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate payments", err)
	}

	return payments, total, nil
}

func buildPaymentFilter(filter PaymentFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	addCondition := func(column, operator string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s %s $%d", column, operator, len(args)))
	}

	if filter.MerchantID != "" {
		addCondition("merchant_id", "=", filter.MerchantID)
	}
	if filter.Status != "" {
		addCondition("status", "=", filter.Status)
	}
	if filter.NotificationSent != nil {
		addCondition("notification_sent", "=", *filter.NotificationSent)
	}
	if filter.From != nil {
		addCondition("created_at", ">=", *filter.From)
	}
	if filter.To != nil {
		addCondition("created_at", "<=", *filter.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// UpdatePaymentOutcome patches the lifecycle fields of a payment in a single
// statement: status, response code/message, milestone timestamps and
// notification state.
func (d Datasource) UpdatePaymentOutcome(ctx context.Context, payment *model.Payment) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
			response_code = $3,
			response_message = $4,
			processed_at = $5,
			paid_at = $6,
			accredited_at = $7,
			notification_sent = $8,
			notification_sent_at = $9,
			updated_at = NOW()
		WHERE transaction_id = $1
	`, payment.TransactionID, payment.Status, payment.ResponseCode, payment.ResponseMessage,
		payment.ProcessedAt, payment.PaidAt, payment.AccreditedAt,
		payment.NotificationSent, payment.NotificationSentAt)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update payment", err)
	}

	return requireRowsAffected(result, payment.TransactionID)
}

func (d Datasource) UpdateNotificationURL(ctx context.Context, id string, url string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payments
		SET notification_url = $2, updated_at = NOW()
		WHERE transaction_id = $1
	`, id, url)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update notification URL", err)
	}

	return requireRowsAffected(result, id)
}

func (d Datasource) MarkAsNotified(ctx context.Context, id string, at time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payments
		SET notification_sent = TRUE, notification_sent_at = $2, updated_at = NOW()
		WHERE transaction_id = $1
	`, id, at)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark payment as notified", err)
	}

	return requireRowsAffected(result, id)
}

func (d Datasource) MarkMultipleAsNotified(ctx context.Context, ids []string, at time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payments
		SET notification_sent = TRUE, notification_sent_at = $2, updated_at = NOW()
		WHERE transaction_id = ANY($1)
	`, pq.Array(ids), at)

	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark payments as notified", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return rowsAffected, nil
}

func (d Datasource) GetPendingNotifications(ctx context.Context, statuses []string, limit int) ([]*model.Payment, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE notification_sent = FALSE
		AND status = ANY($1)
		ORDER BY created_at ASC
		LIMIT $2
	`, pq.Array(statuses), limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pending notifications", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []*model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payment", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate pending notifications", err)
	}

	return payments, nil
}

func requireRowsAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payment with transaction ID '%s' not found", id), nil)
	}
	return nil
}
