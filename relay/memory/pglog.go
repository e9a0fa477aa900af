package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

// TurnRecord is one recorded conversation turn in Postgres.
type TurnRecord struct {
	bun.BaseModel `bun:"table:turns,alias:t"`

	ID         int64     `bun:",pk,autoincrement"`
	SessionID  string    `bun:",notnull"`
	Role       string    `bun:",notnull"`
	Content    string    `bun:""`
	ToolCallID string    `bun:""`
	ToolName   string    `bun:""`
	CreatedAt  time.Time `bun:",notnull"`
}

// PostgresTurnLog implements contract.TurnLog on a Postgres turn table.
type PostgresTurnLog struct {
	db *bun.DB
}

var _ contractx.TurnLog = (*PostgresTurnLog)(nil)

func NewPostgresTurnLog(dsn string) (*PostgresTurnLog, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresTurnLog{db: db}, nil
}

// Migrate creates the turn table when it does not exist yet.
func (l *PostgresTurnLog) Migrate(ctx context.Context) error {
	_, err := l.db.NewCreateTable().
		Model((*TurnRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create turns table: %w", err)
	}
	return nil
}

func (l *PostgresTurnLog) ListRecent(ctx context.Context, sessionID string, k int) ([]contractx.Turn, error) {
	if k <= 0 {
		return nil, nil
	}

	var recs []TurnRecord
	err := l.db.NewSelect().
		Model(&recs).
		Where("session_id = ?", sessionID).
		OrderExpr("created_at DESC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}

	// Query returns newest first; callers expect oldest first.
	turns := make([]contractx.Turn, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		turns = append(turns, contractx.Turn{
			Role:       contractx.Role(rec.Role),
			Content:    rec.Content,
			Timestamp:  rec.CreatedAt,
			ToolCallID: rec.ToolCallID,
			ToolName:   rec.ToolName,
		})
	}
	return turns, nil
}

func (l *PostgresTurnLog) Record(ctx context.Context, sessionID string, turn contractx.Turn) error {
	rec := &TurnRecord{
		SessionID:  sessionID,
		Role:       string(turn.Role),
		Content:    turn.Content,
		ToolCallID: turn.ToolCallID,
		ToolName:   turn.ToolName,
		CreatedAt:  turn.Timestamp,
	}
	if _, err := l.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

func (l *PostgresTurnLog) Close() error {
	return l.db.Close()
}
