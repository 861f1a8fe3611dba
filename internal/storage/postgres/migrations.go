package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// maxGroupMembers is the storage-enforced cap on members per group.
const maxGroupMembers = 15

// schema sets up the database. Transactions, transfers and tombstones all
// draw their ids from the shared ledger_order sequence, so a single device
// watermark orders content creation and deletion together.
const schema = `
CREATE SEQUENCE IF NOT EXISTS ledger_order;

CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT,
    password_hash TEXT NOT NULL DEFAULT '',
    created_on TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE NOT deleted;

CREATE TABLE IF NOT EXISTS groups (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(70) NOT NULL,
    invite_code VARCHAR(10) UNIQUE,
    overwrite BOOLEAN NOT NULL DEFAULT FALSE,
    created_on TIMESTAMPTZ NOT NULL DEFAULT now(),
    version INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users(id),
    balance NUMERIC(14,2) NOT NULL DEFAULT 0,
    PRIMARY KEY (group_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);

CREATE TABLE IF NOT EXISTS transactions (
    id BIGINT PRIMARY KEY DEFAULT nextval('ledger_order'),
    group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    description TEXT NOT NULL,
    payer_id BIGINT NOT NULL REFERENCES users(id),
    amount NUMERIC(14,2) NOT NULL,
    shares JSONB NOT NULL,
    date_time TIMESTAMPTZ NOT NULL,
    created_by BIGINT NOT NULL REFERENCES users(id),
    created_on TIMESTAMPTZ NOT NULL DEFAULT now(),
    modified_on TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_group_id ON transactions(group_id, id);

CREATE TABLE IF NOT EXISTS transfers (
    id BIGINT PRIMARY KEY DEFAULT nextval('ledger_order'),
    group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    sender_id BIGINT NOT NULL REFERENCES users(id),
    receiver_id BIGINT NOT NULL REFERENCES users(id),
    amount NUMERIC(14,2) NOT NULL,
    date_time TIMESTAMPTZ NOT NULL,
    created_by BIGINT NOT NULL REFERENCES users(id),
    created_on TIMESTAMPTZ NOT NULL DEFAULT now(),
    modified_on TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transfers_group_id ON transfers(group_id, id);

CREATE TABLE IF NOT EXISTS tombstones (
    id BIGINT PRIMARY KEY DEFAULT nextval('ledger_order'),
    content_id BIGINT NOT NULL,
    kind TEXT NOT NULL,
    group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    deleted_on TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tombstones_group ON tombstones(group_id, id);
CREATE INDEX IF NOT EXISTS idx_tombstones_content ON tombstones(group_id, content_id);
`

// capacityTrigger enforces the member cap at the storage layer. Joins lock
// the group row first, so the count here cannot race with another join of
// the same group.
const capacityTrigger = `
CREATE OR REPLACE FUNCTION enforce_group_capacity() RETURNS trigger AS $$
BEGIN
    IF (SELECT count(*) FROM group_members WHERE group_id = NEW.group_id) >= %d THEN
        RAISE EXCEPTION 'group member capacity exceeded'
            USING ERRCODE = 'check_violation', CONSTRAINT = 'group_members_capacity';
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_group_capacity ON group_members;
CREATE TRIGGER trg_group_capacity BEFORE INSERT ON group_members
    FOR EACH ROW EXECUTE FUNCTION enforce_group_capacity();
`

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, fmt.Sprintf(capacityTrigger, maxGroupMembers))
	return err
}
