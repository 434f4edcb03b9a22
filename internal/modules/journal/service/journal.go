package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"trade_desk/pkg/db"
)

type Kind string

const (
	KindStream     Kind = "stream"
	KindEscalation Kind = "escalation"
	KindRecovery   Kind = "recovery"
	KindAlert      Kind = "alert"
)

// Entry — одна запись журнала событий дашборда.
type Entry struct {
	ID      uuid.UUID      `json:"id"`
	At      time.Time      `json:"at"`
	Kind    Kind           `json:"kind"`
	Level   string         `json:"level,omitempty"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Noop — журнал выключен.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error { return nil }
func (Noop) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

const schema = `CREATE TABLE IF NOT EXISTS dashboard_journal (
	id      uuid PRIMARY KEY,
	at      timestamptz NOT NULL,
	kind    text NOT NULL,
	level   text NOT NULL DEFAULT '',
	message text NOT NULL,
	payload jsonb
)`

const insertEntry = `INSERT INTO dashboard_journal (id, at, kind, level, message, payload)
VALUES ($1, $2, $3, $4, $5, $6)`

const selectRecent = `SELECT id, at, kind, level, message, payload
FROM dashboard_journal ORDER BY at DESC LIMIT $1`

// Postgres — журнал в таблице dashboard_journal.
type Postgres struct {
	db db.TxManager
}

func NewPostgres(m db.TxManager) *Postgres {
	return &Postgres{db: m}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Conn().Exec(ctx, schema); err != nil {
		return fmt.Errorf("journal.EnsureSchema: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, e Entry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.Record: %w", err)
		}
	}()

	var payload []byte
	if len(e.Payload) > 0 {
		if payload, err = sonic.Marshal(e.Payload); err != nil {
			return err
		}
	}
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertEntry, e.ID, e.At, string(e.Kind), e.Level, e.Message, payload)
		return err
	})
}

func (p *Postgres) Recent(ctx context.Context, limit int) (out []Entry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.Recent: %w", err)
		}
	}()

	rows, err := p.db.Conn().Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []Entry{}
	for rows.Next() {
		var (
			e       Entry
			kind    string
			payload []byte
		)
		if err = rows.Scan(&e.ID, &e.At, &kind, &e.Level, &e.Message, &payload); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		if len(payload) > 0 {
			if err = sonic.Unmarshal(payload, &e.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
