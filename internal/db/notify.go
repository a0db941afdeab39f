package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Notifier announces which phone number's record changed so dashboard
// streams can push fresh rollups.
type Notifier interface {
	Notify(ctx context.Context, phone string) error
	// Listen yields phone numbers until ctx is cancelled, then closes.
	Listen(ctx context.Context) (<-chan string, error)
}

// LocalNotifier fans notifications out to in-process listeners. Slow
// listeners drop notifications rather than block the publisher.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

var (
	_ Notifier = (*LocalNotifier)(nil)
	_ Notifier = (*PGNotifier)(nil)
)

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan string]struct{})}
}

func (n *LocalNotifier) Notify(_ context.Context, phone string) error {
	n.publish(phone)
	return nil
}

func (n *LocalNotifier) publish(phone string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- phone:
		default:
		}
	}
}

func (n *LocalNotifier) Listen(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

// PGNotifier wraps the LISTEN/NOTIFY mechanism in PostgreSQL. A single
// pq.Listener connection receives notifications from every server instance
// and hands them to local listeners.
type PGNotifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
	Log     *zap.SugaredLogger

	local *LocalNotifier
}

// NewPGNotifier constructs a PGNotifier. Call Start to begin receiving.
func NewPGNotifier(db *sql.DB, dsn, channel string, log *zap.SugaredLogger) *PGNotifier {
	return &PGNotifier{DB: db, DSN: dsn, Channel: channel, Log: log, local: NewLocalNotifier()}
}

// Notify sends the phone number as the payload on the channel.
func (n *PGNotifier) Notify(ctx context.Context, phone string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, phone)
	return err
}

func (n *PGNotifier) Listen(ctx context.Context) (<-chan string, error) {
	return n.local.Listen(ctx)
}

// Start opens the listener connection and relays notifications until ctx
// is cancelled.
func (n *PGNotifier) Start(ctx context.Context) error {
	l := pq.NewListener(n.DSN, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.Log.Warnw("notify listener event", "event", ev, "error", err)
		}
	})
	if err := l.Listen(n.Channel); err != nil {
		_ = l.Close()
		return err
	}
	go func() {
		defer l.Close()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case note := <-l.Notify:
				// nil after a reconnect
				if note != nil {
					n.local.publish(note.Extra)
				}
			case <-ping.C:
				if err := l.Ping(); err != nil {
					n.Log.Warnw("notify listener ping", "error", err)
				}
			}
		}
	}()
	return nil
}
