// Package refnum issues sale reference numbers from a database sequence.
// References are sequential without gaps, so allocation is strict:
// every number is an UPSERT + RETURNING round trip.
package refnum

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all references (e.g., "C19")
	Prefix string

	// PadWidth is the minimum number width (default 4)
	PadWidth int
}

// DefaultConfig returns the sale reference format: C19-0001.
func DefaultConfig() Config {
	return Config{
		Prefix:   "C19",
		PadWidth: 4,
	}
}

// Service generates sequential reference numbers.
type Service struct {
	querier Querier
	cfg     Config
}

// New creates a reference number service.
func New(querier Querier, cfg Config) *Service {
	if cfg.Prefix == "" {
		cfg = DefaultConfig()
	}
	return &Service{querier: querier, cfg: cfg}
}

// Next allocates the next reference number.
func (s *Service) Next(ctx context.Context) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("refnum service is not initialized")
	}

	var num int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, s.cfg.Prefix).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next reference: %w", err)
	}

	return s.format(num), nil
}

// SetNext positions the sequence so the next allocation returns value
// (used when importing an existing ledger).
func (s *Service) SetNext(ctx context.Context, value int64) error {
	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, s.cfg.Prefix, value-1).Scan(&result)
	return err
}

func (s *Service) format(num int64) string {
	padWidth := s.cfg.PadWidth
	if padWidth == 0 {
		padWidth = 4
	}
	return fmt.Sprintf("%s-%0*d", s.cfg.Prefix, padWidth, num)
}

// Parse extracts the numeric part from a formatted reference.
// Returns -1 if parsing fails.
func Parse(formatted string) int64 {
	idx := strings.LastIndex(formatted, "-")
	if idx < 0 || idx == len(formatted)-1 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return num
}
