package domain

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Engine is a language-model backend: role-tagged messages in, raw text out.
type Engine interface {
	Name() string
	Model() string
	Complete(ctx context.Context, messages []Message) (string, error)
	Healthy(ctx context.Context) error
}
