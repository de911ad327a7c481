package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/localnerve/formsdb/internal/logging"
)

// Tag names a cached view that a mutation makes stale.
type Tag string

const (
	TagForm            Tag = "FORM"
	TagForms           Tag = "FORMS"
	TagFormFields      Tag = "FORM_FIELDS"
	TagFormResponses   Tag = "FORM_RESPONSES"
	TagPublicForm      Tag = "PUBLIC_FORM"
	TagDashboard       Tag = "DASHBOARD"
	TagDashboards      Tag = "DASHBOARDS"
	TagRole            Tag = "ROLE"
	TagRoles           Tag = "ROLES"
	TagRolePermissions Tag = "ROLE_PERMISSIONS"
	TagPermissions     Tag = "PERMISSIONS"
)

// RevalidateChannel is the redis channel signals are published on.
const RevalidateChannel = "formsdb:revalidate"

// Signal invalidates one tag, optionally qualified by an entity id.
type Signal struct {
	Tag Tag    `json:"tag"`
	ID  string `json:"id,omitempty"`
}

func (s Signal) String() string {
	if s.ID == "" {
		return string(s.Tag)
	}
	return string(s.Tag) + ":" + s.ID
}

// Of qualifies tag with id.
func Of(tag Tag, id string) Signal {
	return Signal{Tag: tag, ID: id}
}

// All is tag without qualification.
func All(tag Tag) Signal {
	return Signal{Tag: tag}
}

// Revalidator delivers invalidation signals after a mutation commits.
// Delivery problems are logged and never fail the mutation.
type Revalidator interface {
	Emit(ctx context.Context, signals ...Signal)
}

// LogRevalidator only logs signals. It serves deployments without a cache layer.
type LogRevalidator struct{}

func (LogRevalidator) Emit(_ context.Context, signals ...Signal) {
	if len(signals) == 0 {
		return
	}
	logging.Logger.WithField("signals", joinSignals(signals)).Debug("revalidate")
}

// RedisRevalidator publishes each signal as JSON on RevalidateChannel.
type RedisRevalidator struct {
	client *redis.Client
}

func NewRedisRevalidator(client *redis.Client) *RedisRevalidator {
	return &RedisRevalidator{client: client}
}

type revalidateMessage struct {
	Signal
	EmittedAt time.Time `json:"emitted_at"`
}

func (r *RedisRevalidator) Emit(ctx context.Context, signals ...Signal) {
	now := time.Now().UTC()
	for _, s := range signals {
		payload, err := json.Marshal(revalidateMessage{Signal: s, EmittedAt: now})
		if err != nil {
			continue
		}
		if err := r.client.Publish(ctx, RevalidateChannel, payload).Err(); err != nil {
			logging.Logger.WithFields(logrus.Fields{
				"signal": s.String(),
				"error":  err.Error(),
			}).Warn("revalidation publish failed")
		}
	}
}

func joinSignals(signals []Signal) string {
	parts := make([]string, len(signals))
	for i, s := range signals {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
