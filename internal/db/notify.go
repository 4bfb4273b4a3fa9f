package db

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Notifier wraps LISTEN/NOTIFY in PostgreSQL.  Ingestion announces changed
// document sources on Channel and every server instance listens so it can
// drop its cached chunks.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
}

// NewNotifier constructs a new Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable.
func NewNotifier(db *sql.DB, dsn, channel string) *Notifier {
	return &Notifier{DB: db, DSN: dsn, Channel: channel}
}

// Notify publishes payload on the channel.
func (n *Notifier) Notify(ctx context.Context, payload string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, payload)
	return err
}

// Listen opens a dedicated listener connection and yields payloads until ctx
// is cancelled.  After a reconnect an empty payload is sent, since
// notifications may have been missed in between.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	listener := pq.NewListener(n.DSN, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("Notification listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		_ = listener.Close()
		return nil, err
	}

	ch := make(chan string)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case nt := <-listener.Notify:
				payload := ""
				if nt != nil {
					payload = nt.Extra
				}
				select {
				case ch <- payload:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				go func() {
					if err := listener.Ping(); err != nil {
						slog.Warn("Notification listener ping failed", "error", err)
					}
				}()
			}
		}
	}()
	return ch, nil
}
