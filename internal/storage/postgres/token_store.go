package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if mint exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	if t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (mint, creator, name, symbol, slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Mint, t.Creator, t.Name, t.Symbol, t.Slot, t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.Token, error) {
	query := `
		SELECT mint, creator, name, symbol, slot, created_at
		FROM tokens
		WHERE mint = $1
	`

	var t domain.Token
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&t.Mint, &t.Creator, &t.Name, &t.Symbol, &t.Slot, &t.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return &t, nil
}

// GetCreatedSince retrieves tokens created at or after the given timestamp
// (ms), ordered by creation time ASC.
func (s *TokenStore) GetCreatedSince(ctx context.Context, since int64) ([]*domain.Token, error) {
	query := `
		SELECT mint, creator, name, symbol, slot, created_at
		FROM tokens
		WHERE created_at >= $1
		ORDER BY created_at ASC, slot ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get tokens created since: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// GetAll retrieves all tokens ordered by (slot, created_at) ASC.
func (s *TokenStore) GetAll(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT mint, creator, name, symbol, slot, created_at
		FROM tokens
		ORDER BY slot ASC, created_at ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(&t.Mint, &t.Creator, &t.Name, &t.Symbol, &t.Slot, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}
