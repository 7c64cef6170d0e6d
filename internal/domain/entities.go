package domain

import "time"

// Fragment is a unit of learned knowledge. Seq is its position in the store,
// assigned at append time.
type Fragment struct {
	Seq  uint64
	Text string
}

// Vector is the embedding of a fragment or a query.
type Vector []float32

type ScoredFragment struct {
	Fragment Fragment
	Score    float64
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known chat roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the request handed to the language model.
type Prompt struct {
	Messages    []Message
	UsedContext int
}

type Stats struct {
	Fragments int       `json:"fragments"`
	Vectors   int       `json:"vectors"`
	Dimension int       `json:"dimension"`
	StoreID   string    `json:"store_id,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
