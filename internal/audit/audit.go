package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
)

// Action names written to audit_logs.
const (
	ActionCheckout      = "billing.checkout"
	ActionPortal        = "billing.portal"
	ActionSubscription  = "billing.subscription_updated"
	ActionAccountExport = "account.export"
	ActionAccountDelete = "account.delete"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Entry struct {
	UserID     *string
	Action     string
	EntityType string
	EntityID   *string
	IP         *string
	UserAgent  *string
	Metadata   []byte
}

// Write records an audit entry; failures are returned so callers can ignore if needed.
func Write(ctx context.Context, db Execer, e Entry) error {
	if db == nil {
		return nil
	}

	var metadata interface{}
	if len(e.Metadata) > 0 {
		metadata = json.RawMessage(e.Metadata)
	}

	_, err := db.Exec(ctx, `
INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip, user_agent, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, e.UserID, e.Action, e.EntityType, e.EntityID, e.IP, e.UserAgent, metadata)

	return err
}

// Recorder writes request-scoped entries best effort.
type Recorder struct {
	DB  Execer
	Log *zap.Logger
}

func NewRecorder(db Execer, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{DB: db, Log: log}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FromRequest builds an entry carrying the caller's id, IP and user agent.
func FromRequest(c *fiber.Ctx, action, entityType, entityID string, meta any) Entry {
	e := Entry{
		UserID:     strPtr(auth.UserID(c)),
		Action:     action,
		EntityType: entityType,
		EntityID:   strPtr(entityID),
		IP:         strPtr(c.IP()),
		UserAgent:  strPtr(c.Get(fiber.HeaderUserAgent)),
	}
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			e.Metadata = b
		}
	}
	return e
}

// Record writes e with its own short timeout and logs a failure instead of returning it.
func (r *Recorder) Record(e Entry) {
	if r == nil || r.DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := Write(ctx, r.DB, e); err != nil {
		r.Log.Warn("audit write failed", zap.String("action", e.Action), zap.Error(err))
	}
}
