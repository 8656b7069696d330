package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tsbernar/proxy-auth/types"
)

const (
	EventUserCreated = "user.created"
	EventUserDeleted = "user.deleted"
	EventLogin       = "session.login"
	EventLoginFailed = "session.login_failed"
)

// EventPublisher is satisfied by *mq.MQ.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AuditEvent is the JSON body of every published event.
type AuditEvent struct {
	Type     string    `json:"type"`
	UserID   int       `json:"user_id,omitempty"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	At       time.Time `json:"at"`
}

type actorKey struct{}

// WithActor tags ctx with the username performing an admin action.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// publish never fails the caller; broker trouble is only logged.
func (s *UserService) publish(ctx context.Context, eventType string, user types.User) {
	if s.events == nil {
		return
	}
	event := AuditEvent{
		Type:     eventType,
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		Actor:    actorFrom(ctx),
		At:       time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode audit event", "type", eventType, "err", err)
		return
	}
	if _, err := s.events.Publish(ctx, s.channel, data, map[string]string{"type": eventType}); err != nil {
		s.logger.WarnContext(ctx, "publish audit event", "type", eventType, "err", err)
	}
}
