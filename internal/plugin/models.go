package plugin

import "time"

type Plugin struct {
	ID      string `json:"id" bson:"_id"`
	Name    string `json:"name" bson:"name"`
	Enabled bool   `json:"enabled" bson:"enabled"`
	// Topic overrides the default "<plugin_topic_prefix><id>" destination.
	Topic     string                 `json:"topic,omitempty" bson:"topic,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty" bson:"config,omitempty"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updated_at"`
}

// Event is handed to plugins by the plugin_emit action.
type Event struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
}

type Result struct {
	Success  bool          `json:"success"`
	Result   interface{}   `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type RegisterRequest struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name" binding:"required"`
	Enabled *bool                  `json:"enabled"`
	Topic   string                 `json:"topic"`
	Config  map[string]interface{} `json:"config"`
}

type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}
