package pgorders

import (
	"context"

	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ListOrderSteps returns every stored step of an order, oldest first.
func (s *Storage) ListOrderSteps(ctx context.Context, orderID uint64) ([]*models.OrderStep, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, order_id, step, status, sub_status, status_description,
  location, latitude, longitude, "timestamp", created_at
FROM order_steps
WHERE order_id = $1
ORDER BY "timestamp" ASC, id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select steps")
	}
	defer rows.Close()

	var out []*models.OrderStep
	for rows.Next() {
		var st models.OrderStep
		var lat, lng *float64
		if err := rows.Scan(
			&st.ID, &st.OrderID, &st.Step, &st.Status, &st.SubStatus, &st.Description,
			&st.Location, &lat, &lng, &st.Timestamp, &st.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan step")
		}
		if lat != nil && lng != nil {
			st.Coordinates = &models.Coordinates{Latitude: *lat, Longitude: *lng}
		}
		out = append(out, &st)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ApplyOrderUpdate inserts the new steps and updates the order row in one transaction. Steps
// colliding with an already stored identity key are skipped and are not returned or counted.
// The loss flag and completion type can only be set here, never cleared.
func (s *Storage) ApplyOrderUpdate(ctx context.Context, upd models.OrderUpdate) ([]*models.OrderStep, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := make([]*models.OrderStep, 0, len(upd.NewSteps))
	for _, st := range upd.NewSteps {
		var lat, lng *float64
		if st.Coordinates != nil {
			lat, lng = &st.Coordinates.Latitude, &st.Coordinates.Longitude
		}

		row := *st
		row.OrderID = upd.OrderID
		err := tx.QueryRow(ctx, `
INSERT INTO order_steps (
  order_id, step, status, sub_status, status_description,
  location, latitude, longitude, "timestamp", created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT DO NOTHING
RETURNING id, created_at
`, upd.OrderID, st.Step, st.Status, st.SubStatus, st.Description,
			st.Location, lat, lng, st.Timestamp.UTC(), upd.UpdatedAt.UTC()).Scan(&row.ID, &row.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert step")
		}
		inserted = append(inserted, &row)
	}

	var completion *string
	if upd.CompletionType != nil {
		c := string(*upd.CompletionType)
		completion = &c
	}

	tag, err := tx.Exec(ctx, `
UPDATE orders
SET
  status = CASE WHEN $2::boolean THEN $3::text ELSE status END,
  sub_status = CASE WHEN $2::boolean THEN COALESCE($4::text, sub_status) ELSE sub_status END,
  sls = sls OR $5::boolean,
  loss_reason = COALESCE(loss_reason, $6::text),
  exception_details = COALESCE($7::text, exception_details),
  completion_type = COALESCE(completion_type, $8::text),
  carrier_estimated_delivery_timestamp = COALESCE($9::timestamptz, carrier_estimated_delivery_timestamp),
  carrier_confirmed_delivery_timestamp = COALESCE($10::timestamptz, carrier_confirmed_delivery_timestamp),
  n_steps = n_steps + $11::int,
  updated_at = $12
WHERE id = $1
`, upd.OrderID, upd.SetStatus, upd.Status, upd.SubStatus,
		upd.LossFlag, upd.LossReason, upd.ExceptionDetails, completion,
		upd.CarrierEstimatedDeliveryAt, upd.CarrierConfirmedDeliveryAt,
		len(inserted), upd.UpdatedAt.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %d", upd.OrderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return inserted, nil
}
