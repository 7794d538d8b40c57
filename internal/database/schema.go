package database

// Schema holds the full portfolio schema. Accounts and holdings are
// mutated exclusively through the ledger; quote_cache exclusively
// through the quote aggregator.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL DEFAULT '',
    cash NUMERIC NOT NULL DEFAULT 10000.00 CHECK (cash >= 0)
);

CREATE TABLE IF NOT EXISTS holdings (
    account_id INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    shares INTEGER NOT NULL CHECK (shares > 0),
    PRIMARY KEY (account_id, symbol),
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('buy', 'sell')),
    symbol TEXT NOT NULL,
    price NUMERIC NOT NULL,
    shares INTEGER NOT NULL CHECK (shares > 0),
    time TEXT NOT NULL,
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_time ON transactions(account_id, time);

CREATE TABLE IF NOT EXISTS quote_cache (
    symbol TEXT NOT NULL PRIMARY KEY,
    price NUMERIC NOT NULL,
    observed_at TEXT NOT NULL
);
`
