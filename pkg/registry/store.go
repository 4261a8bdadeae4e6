package registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists and authenticates agents.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open, migrated database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Provision registers a new agent and returns its id plus the raw bearer
// token the caller must hand to the agent out of band — the token is never
// stored or retrievable again, only its hash.
func (s *Store) Provision(ctx context.Context, name, hostname string, port int) (agentID, rawToken string, err error) {
	rawToken, err = generateToken()
	if err != nil {
		return "", "", fmt.Errorf("provision agent: %w", err)
	}
	hash := hashToken(rawToken)
	agentID = uuid.NewString()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, name, hostname, port, gpu_summary, status, token_hash, token_prefix, registered_at)
		VALUES ($1, $2, $3, $4, '{}'::jsonb, $5, $6, $7, $8)
	`, agentID, name, hostname, port, StatusOffline, hash, rawToken[:8], now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", "", ErrNameTaken
		}
		return "", "", fmt.Errorf("provision agent: %w", err)
	}
	return agentID, rawToken, nil
}

// Verify checks a presented bearer token and returns the owning agent_id.
// Lookup is by the presented token's own hash (an indexed equality lookup,
// not a table scan), and the final decision is still a constant-time
// comparison of the stored hash bytes — closing the timing side-channel
// without giving up an index on token_hash.
func (s *Store) Verify(ctx context.Context, rawToken string) (string, error) {
	presented := hashToken(rawToken)

	var agentID, stored string
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_id, token_hash FROM agents WHERE token_hash = $1 AND unregistered_at IS NULL
	`, presented).Scan(&agentID, &stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("verify token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		return "", ErrUnauthorized
	}
	return agentID, nil
}

// Heartbeat updates last_heartbeat and capability fields atomically, and
// flips status to online.
func (s *Store) Heartbeat(ctx context.Context, agentID string, details HeartbeatDetails) error {
	gpu := details.GPUSummary
	if gpu == nil {
		gpu = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET
			last_heartbeat = $1,
			cpu_arch = $2,
			gpu_summary = $3,
			kitt_version = $4,
			status = $5
		WHERE agent_id = $6 AND unregistered_at IS NULL
	`, time.Now().UTC(), details.CPUArch, []byte(gpu), details.KittVersion, StatusOnline, agentID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a single agent.
func (s *Store) Get(ctx context.Context, agentID string) (Agent, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE agent_id = $1`, agentID)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// GetByName fetches a single agent by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (Agent, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE name = $1`, name)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("get agent by name: %w", err)
	}
	return a, nil
}

// List returns every registered agent, unregistered ones included, ordered
// by registration time.
func (s *Store) List(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY registered_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListOnline returns agents considered online under the liveness window l.
func (s *Store) ListOnline(ctx context.Context, l time.Duration) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE unregistered_at IS NULL AND last_heartbeat IS NOT NULL AND last_heartbeat >= $1
		ORDER BY registered_at ASC`, time.Now().UTC().Add(-l))
	if err != nil {
		return nil, fmt.Errorf("list online agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("list online agents: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Unregister marks an agent as unregistered; it can no longer authenticate
// or receive new campaigns, but its historical runs remain intact.
func (s *Store) Unregister(ctx context.Context, agentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET status = $1, unregistered_at = $2
		WHERE agent_id = $3 AND unregistered_at IS NULL
	`, StatusOffline, time.Now().UTC(), agentID)
	if err != nil {
		return fmt.Errorf("unregister agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unregister agent: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOfflineStale flips status to offline for every online agent whose
// last heartbeat is older than the liveness window — the write side of the
// liveness sweeper in sweep.go.
func (s *Store) MarkOfflineStale(ctx context.Context, l time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET status = $1
		WHERE status = $2 AND (last_heartbeat IS NULL OR last_heartbeat < $3)
	`, StatusOffline, StatusOnline, time.Now().UTC().Add(-l))
	if err != nil {
		return 0, fmt.Errorf("mark offline stale: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `
	SELECT agent_id, name, hostname, port, cpu_arch, gpu_summary, status,
	       last_heartbeat, token_hash, token_prefix, kitt_version, registered_at, unregistered_at
	FROM agents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var a Agent
	var gpu []byte
	if err := row.Scan(
		&a.ID, &a.Name, &a.Hostname, &a.Port, &a.CPUArch, &gpu, &a.Status,
		&a.LastHeartbeat, &a.TokenHash, &a.TokenPrefix, &a.KittVersion, &a.RegisteredAt, &a.UnregisteredAt,
	); err != nil {
		return Agent{}, err
	}
	a.GPUSummary = gpu
	return a, nil
}

// generateToken returns a URL-safe, base64-encoded 256-bit random token,
// comfortably over a 128-bit security floor.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashToken returns a fixed-length hex digest so constant-time comparisons
// never short-circuit on differing input length, following headergate.go's
// sha256.Sum256 + subtle.ConstantTimeCompare pattern.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), e.g. a duplicate agent name.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
