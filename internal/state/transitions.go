package state

// validTransitions lists the forward moves of each flow. Returning to idle
// is always allowed and not listed.
var validTransitions = map[State][]State{
	StateIdle: {
		StateRegisteringName,
		StateTransferRecipient,
	},
	StateRegisteringName: {
		StateRegisteringSurname,
	},
	StateRegisteringSurname: {
		StateRegisteringPhone,
	},
	StateRegisteringPhone: {
		StateRegisteringPIN,
		StateLinkingChannel,
	},
	StateTransferRecipient: {
		StateTransferAmount,
	},
	StateTransferAmount: {
		StateTransferConfirm,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle {
		return true
	}

	for _, state := range validTransitions[from] {
		if state == to {
			return true
		}
	}

	return false
}

// Active lists every state a stored session can be in, in flow order.
func Active() []State {
	return []State{
		StateRegisteringName,
		StateRegisteringSurname,
		StateRegisteringPhone,
		StateRegisteringPIN,
		StateLinkingChannel,
		StateTransferRecipient,
		StateTransferAmount,
		StateTransferConfirm,
	}
}
