package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action labels the registry operation an event describes.
type Action string

const (
	ActionRegister   Action = "register"
	ActionDedupHit   Action = "dedup_hit"
	ActionTransfer   Action = "transfer"
	ActionRuleUpdate Action = "rule_update"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	ContentID uint64    `json:"content_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
