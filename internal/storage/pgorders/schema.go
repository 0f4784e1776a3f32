package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

// initSchema creates the tables the reconciler reads and writes. Orders and carriers are owned
// by the injestor; the statements are idempotent so both can run them.
func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS carriers (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  carrier_17track_id TEXT NULL UNIQUE,
  n_losses BIGINT NOT NULL DEFAULT 0,
  n_orders BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  carrier_id BIGINT NULL REFERENCES carriers(id),
  tracking_number TEXT NOT NULL,
  tracking_link TEXT NULL,
  status TEXT NOT NULL,
  sub_status TEXT NULL,
  completion_type TEXT NULL CHECK (completion_type IN ('DELIVERED', 'EXCEPTION', 'RETURNED', 'EXPIRED')),
  sls BOOLEAN NOT NULL DEFAULT false,
  loss_reason TEXT NULL,
  exception_details TEXT NULL,
  n_steps INT NOT NULL DEFAULT 0,
  manufacturer_creation_timestamp TIMESTAMPTZ NULL,
  manufacturer_estimated_delivery_timestamp TIMESTAMPTZ NULL,
  manufacturer_confirmed_delivery_timestamp TIMESTAMPTZ NULL,
  carrier_creation_timestamp TIMESTAMPTZ NULL,
  carrier_estimated_delivery_timestamp TIMESTAMPTZ NULL,
  carrier_confirmed_delivery_timestamp TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_updated_at ON orders(status, updated_at)`,
		`
CREATE TABLE IF NOT EXISTS order_steps (
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(id),
  step INT NOT NULL,
  status TEXT NOT NULL,
  sub_status TEXT NULL,
  status_description TEXT NOT NULL,
  location TEXT NOT NULL,
  latitude DOUBLE PRECISION NULL,
  longitude DOUBLE PRECISION NULL,
  "timestamp" TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_steps_order_id_timestamp ON order_steps(order_id, "timestamp")`,
		// One step per identity key and order.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_order_steps_identity ON order_steps(order_id, "timestamp", location, status, COALESCE(sub_status, ''))`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
