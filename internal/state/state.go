package state

import "time"

// State represents a conversation state.
type State string

const (
	// StateIdle means no multi-step flow is in progress.
	StateIdle State = "idle"

	StateRegisteringName    State = "registering_name"
	StateRegisteringSurname State = "registering_surname"
	StateRegisteringPhone   State = "registering_phone"
	StateRegisteringPIN     State = "registering_pin"

	// StateLinkingChannel waits for the PIN of an existing account whose
	// phone was entered during registration.
	StateLinkingChannel State = "linking_channel"

	StateTransferRecipient State = "transfer_recipient"
	StateTransferAmount    State = "transfer_amount"
	StateTransferConfirm   State = "transfer_confirm"
)

// Scratch keys used by the conversation flows.
const (
	KeyFirstName     = "first_name"
	KeyLastName      = "last_name"
	KeyPhone         = "phone"
	KeyLinkPhone     = "link_phone"
	KeyReceiverID    = "receiver_id"
	KeyReceiverName  = "receiver_name"
	KeyReceiverPhone = "receiver_phone"
	KeyAmount        = "amount"
)

// UserState is one actor's conversation session.
type UserState struct {
	UserID       int64             `json:"user_id"`
	CurrentState State             `json:"current_state"`
	Context      map[string]string `json:"context,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Value returns a scratch value, or "" when the session or key is absent.
func (s *UserState) Value(key string) string {
	if s == nil || s.Context == nil {
		return ""
	}
	return s.Context[key]
}

// With returns a copy of the scratch map extended with the given pairs.
func (s *UserState) With(kv ...string) map[string]string {
	out := make(map[string]string, len(kv)/2)
	if s != nil {
		for k, v := range s.Context {
			out[k] = v
		}
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}
