package pgorders

import (
	"context"
	"time"

	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `
  o.id, o.tracking_number, o.carrier_id,
  COALESCE(c.carrier_17track_id, ''), COALESCE(c.name, ''),
  o.status, o.sub_status, o.completion_type,
  o.sls, o.loss_reason, o.exception_details, o.n_steps,
  o.manufacturer_creation_timestamp, o.manufacturer_estimated_delivery_timestamp, o.manufacturer_confirmed_delivery_timestamp,
  o.carrier_creation_timestamp, o.carrier_estimated_delivery_timestamp, o.carrier_confirmed_delivery_timestamp,
  o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var completion *string
	if err := row.Scan(
		&o.ID, &o.TrackingNumber, &o.CarrierID,
		&o.CarrierRef, &o.CarrierName,
		&o.Status, &o.SubStatus, &completion,
		&o.LossFlag, &o.LossReason, &o.ExceptionDetails, &o.StepCount,
		&o.ManufacturerCreatedAt, &o.ManufacturerEstimatedDeliveryAt, &o.ManufacturerConfirmedDeliveryAt,
		&o.CarrierCreatedAt, &o.CarrierEstimatedDeliveryAt, &o.CarrierConfirmedDeliveryAt,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if completion != nil {
		c := models.CompletionType(*completion)
		o.CompletionType = &c
	}
	return &o, nil
}

// ListEligibleOrders returns active, non-lost orders with a tracking number that have not been
// touched since q.UpdatedBefore, oldest first.
func (s *Storage) ListEligibleOrders(ctx context.Context, q models.EligibilityQuery) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+orderColumns+`
FROM orders o
LEFT JOIN carriers c ON c.id = o.carrier_id
WHERE o.status = ANY($1)
  AND o.tracking_number <> ''
  AND o.sls = false
  AND o.updated_at < $2
ORDER BY o.updated_at ASC
LIMIT $3
`, q.ActiveStatuses, q.UpdatedBefore.UTC(), q.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "select eligible orders")
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan eligible order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `
SELECT`+orderColumns+`
FROM orders o
LEFT JOIN carriers c ON c.id = o.carrier_id
WHERE o.id = $1
`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

// IncrementCarrierLosses bumps n_losses in place so concurrent runs never lose an increment.
func (s *Storage) IncrementCarrierLosses(ctx context.Context, carrierID uint64) error {
	_, err := s.db.Exec(ctx, `UPDATE carriers SET n_losses = n_losses + 1, updated_at = $2 WHERE id = $1`, carrierID, time.Now().UTC())
	return errors.Wrap(err, "increment carrier losses")
}
