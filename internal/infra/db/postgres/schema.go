package postgres

// Schema is the full DDL for the payments database. The seeder applies it on
// deploy; the integration harness applies it to a throwaway container.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
  id                   TEXT PRIMARY KEY,
  plan_id              TEXT NOT NULL,
  plan_name            TEXT NOT NULL DEFAULT '',
  plan_price           BIGINT NOT NULL,
  plan_currency        TEXT NOT NULL,
  plan_duration        INT NOT NULL DEFAULT 0,
  plan_duration_unit   TEXT NOT NULL DEFAULT '',
  plan_description     TEXT NOT NULL DEFAULT '',
  user_id              TEXT NOT NULL,
  user_email           TEXT NOT NULL DEFAULT '',
  user_name            TEXT NOT NULL DEFAULT '',
  user_phone           TEXT NOT NULL DEFAULT '',
  amount               BIGINT NOT NULL,
  currency             TEXT NOT NULL,
  payment_status       TEXT NOT NULL DEFAULT 'pending',
  trx_reference_number TEXT NOT NULL DEFAULT '',
  merchant_order_id    TEXT NOT NULL DEFAULT '',
  order_id             TEXT NOT NULL DEFAULT '',
  order_reference      TEXT NOT NULL DEFAULT '',
  masked_card          TEXT NOT NULL DEFAULT '',
  card_brand           TEXT NOT NULL DEFAULT '',
  card_data_token      TEXT NOT NULL DEFAULT '',
  signature            TEXT NOT NULL DEFAULT '',
  mode                 TEXT NOT NULL DEFAULT 'live',
  language             TEXT NOT NULL DEFAULT 'en',
  created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  completed_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions (trx_reference_number);
CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions (order_id);
CREATE INDEX IF NOT EXISTS idx_transactions_merchant_order ON transactions (merchant_order_id);

CREATE TABLE IF NOT EXISTS accounts (
  id                    TEXT PRIMARY KEY,
  email                 TEXT NOT NULL,
  name                  TEXT NOT NULL DEFAULT '',
  phone                 TEXT NOT NULL DEFAULT '',
  sub_plan              TEXT NOT NULL DEFAULT 'free',
  sub_status            TEXT NOT NULL DEFAULT 'active',
  sub_start_date        TIMESTAMPTZ,
  sub_expiration_date   TIMESTAMPTZ,
  sub_credits_remaining INT,
  sub_renewal_date      TIMESTAMPTZ,
  sub_next_billing_date TIMESTAMPTZ,
  sub_last_payment_date TIMESTAMPTZ,
  subscription_history  JSONB NOT NULL DEFAULT '[]'::jsonb,
  last_transaction_id   TEXT NOT NULL DEFAULT '',
  created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_expiration ON accounts (sub_status, sub_expiration_date);
`
