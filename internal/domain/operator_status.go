package domain

// OperatorStatus is a base status an operator can put a seat into.
type OperatorStatus string

const (
	OperatorAvailable OperatorStatus = "AVAILABLE"
	OperatorBlocked   OperatorStatus = "BLOCKED"
	OperatorDisabled  OperatorStatus = "DISABLED"
)

var operatorTransitions = map[OperatorStatus]func(*ShowingSeat) error{
	OperatorAvailable: (*ShowingSeat).Enable,
	OperatorBlocked:   (*ShowingSeat).Block,
	OperatorDisabled:  (*ShowingSeat).Disable,
}

func (o OperatorStatus) IsValid() bool {
	_, ok := operatorTransitions[o]
	return ok
}

// ApplyOperatorStatus runs the state machine method mapped to status.
func (s *ShowingSeat) ApplyOperatorStatus(status OperatorStatus) error {
	transition, ok := operatorTransitions[status]
	if !ok {
		return ErrUnknownOperatorStatus
	}

	return transition(s)
}

func (s *ShowingSeat) isOperatorControlled() bool {
	return s.Status == SeatAvailable || s.Status == SeatBlocked || s.Status == SeatDisabled
}

func (s *ShowingSeat) Block() error {
	if !s.isOperatorControlled() {
		return s.stateError("block")
	}

	s.Status = SeatBlocked

	return nil
}

func (s *ShowingSeat) Disable() error {
	if !s.isOperatorControlled() {
		return s.stateError("disable")
	}

	s.Status = SeatDisabled

	return nil
}

func (s *ShowingSeat) Enable() error {
	if !s.isOperatorControlled() {
		return s.stateError("enable")
	}

	s.Status = SeatAvailable

	return nil
}
