package core

// Action is one of the four social actions an agent may take per turn.
type Action string

const (
	ActionPost   Action = "POST"
	ActionReply  Action = "REPLY"
	ActionLike   Action = "LIKE"
	ActionAccuse Action = "ACCUSE"
)

// Actions lists every valid action in scoring order.
var Actions = []Action{ActionPost, ActionReply, ActionAccuse, ActionLike}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionPost, ActionReply, ActionLike, ActionAccuse:
		return true
	}
	return false
}

// Decision is an agent's proposed action for a single turn
type Decision struct {
	Agent        string `json:"agent,omitempty"`
	Action       Action `json:"action"`
	Target       string `json:"target,omitempty"`
	TargetPostID *int64 `json:"target_post_id,omitempty"`
	Content      string `json:"content,omitempty"`
	Reasoning    string `json:"reasoning"`
}

// PostID returns a pointer usable as Decision.TargetPostID.
func PostID(id int64) *int64 {
	return &id
}
