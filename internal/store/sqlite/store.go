package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasnim.dev/role-grant/internal/grant"

	_ "modernc.org/sqlite"
)

// Store is a grant.Store on SQLite for running without AWS. SQLite has no
// native TTL, so expired rows are removed by Sweep.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS role_requests (
        request_id TEXT PRIMARY KEY,
        role_name TEXT NOT NULL,
        policy_arns JSON NOT NULL,
        requester TEXT NOT NULL,
        status TEXT NOT NULL,
        created_at TEXT NOT NULL,
        expiration_time INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS role_requests_expiration ON role_requests (expiration_time);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, req *grant.RoleRequest) error {
	policies, err := json.Marshal(req.PolicyARNs)
	if err != nil {
		return fmt.Errorf("encode policy_arns: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO role_requests (request_id, role_name, policy_arns, requester, status, created_at, expiration_time)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.RequestID, req.RoleName, string(policies), req.Requester, string(req.Status),
		req.CreatedAt.UTC().Format(time.RFC3339), req.ExpirationTime,
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.RequestID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, requestID string) (*grant.RoleRequest, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT request_id, role_name, policy_arns, requester, status, created_at, expiration_time
        FROM role_requests
        WHERE request_id = ?`, requestID)

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, grant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", requestID, err)
	}
	return req, nil
}

func (s *Store) Transition(ctx context.Context, requestID string, from []grant.Status, to grant.Status) error {
	if len(from) == 0 {
		return fmt.Errorf("transition %s: no source status", requestID)
	}
	args := []any{string(to), requestID}
	for _, st := range from {
		args = append(args, string(st))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")

	res, err := s.db.ExecContext(ctx,
		`UPDATE role_requests SET status = ? WHERE request_id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("update request %s: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request %s: %w", requestID, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.Get(ctx, requestID); err != nil {
		return err
	}
	return fmt.Errorf("%w: request %s changed concurrently", grant.ErrConflict, requestID)
}

// Sweep deletes every request whose expiration_time is at or before now and
// returns the deleted rows as they were just before removal.
func (s *Store) Sweep(ctx context.Context, now time.Time) ([]grant.RoleRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
        SELECT request_id, role_name, policy_arns, requester, status, created_at, expiration_time
        FROM role_requests
        WHERE expiration_time <= ?
        ORDER BY expiration_time`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	var expired []grant.RoleRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("sweep: %w", err)
		}
		expired = append(expired, *req)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	for _, req := range expired {
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_requests WHERE request_id = ?`, req.RequestID); err != nil {
			return nil, fmt.Errorf("sweep delete %s: %w", req.RequestID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sweep commit: %w", err)
	}
	return expired, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*grant.RoleRequest, error) {
	var (
		req      grant.RoleRequest
		policies string
		status   string
		created  string
	)
	if err := row.Scan(&req.RequestID, &req.RoleName, &policies, &req.Requester, &status, &created, &req.ExpirationTime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(policies), &req.PolicyARNs); err != nil {
		return nil, fmt.Errorf("decode policy_arns: %w", err)
	}
	req.Status = grant.Status(status)
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		req.CreatedAt = t
	}
	return &req, nil
}
