package model

import "time"

// Role identifies the participant that authored a message.
type Role string

const (
	RoleUser     Role = "user"
	RoleAgent1   Role = "agent1"
	RoleAgent2   Role = "agent2"
	RoleAgent3   Role = "agent3"
	RoleVerifier Role = "verifier"
	RoleSystem   Role = "system"

	// Legal track.
	RoleJudge    Role = "judge"
	RoleClaimant Role = "claimant"
	RoleOpposing Role = "opposing"

	// Dev project track.
	RolePM   Role = "pm"
	RoleTech Role = "tech"
	RoleUX   Role = "ux"
	RolePRD  Role = "prd"
	RoleDM   Role = "dm"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known participant tag.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAgent1, RoleAgent2, RoleAgent3, RoleVerifier, RoleSystem,
		RoleJudge, RoleClaimant, RoleOpposing,
		RolePM, RoleTech, RoleUX, RolePRD, RoleDM:
		return true
	}
	return false
}

// Message is one rendered turn. While IsStreaming is true the ID is a
// client-side placeholder and Content is still accumulating.
type Message struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	RoundIndex  int    `json:"roundIndex"`
	Phase       Phase  `json:"phase"`
	IsStreaming bool   `json:"isStreaming"`
}

// MessageRecord is the persisted row shape delivered by the history endpoint
// and by durable-storage change notifications.
type MessageRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        Role      `json:"role"`
	ContentText string    `json:"content_text"`
	RoundIndex  int       `json:"round_index"`
	Phase       Phase     `json:"phase"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToMessage projects a persisted record into its rendered form.
func (r *MessageRecord) ToMessage() Message {
	return Message{
		ID:         r.ID,
		Role:       r.Role,
		Content:    r.ContentText,
		RoundIndex: r.RoundIndex,
		Phase:      r.Phase,
	}
}
