package checkout

import (
	"fmt"

	"bloomcart-be/internal/apperr"
)

// transitions lists the moves each step allows. processing is only reached by
// wallet payments; card payments go straight from payment to confirmation.
var transitions = map[Step][]Step{
	StepDelivery:   {StepAddress},
	StepAddress:    {StepDelivery, StepPayment},
	StepPayment:    {StepAddress, StepProcessing, StepConfirmation},
	StepProcessing: {StepConfirmation},
}

func canTransition(from, to Step) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition moves the session to step to. Entered data is never cleared, so
// going back and forth between steps keeps what the customer typed.
func (s *Session) transition(to Step) error {
	if s.Step == to {
		return nil
	}
	if !canTransition(s.Step, to) {
		return apperr.Conflict(fmt.Sprintf("cannot move checkout from %s to %s", s.Step, to))
	}

	switch to {
	case StepProcessing:
		if _, ok := s.payment().(WalletPayment); !ok {
			return apperr.Conflict("only wallet payments go through processing")
		}
	case StepConfirmation:
		if s.Step == StepPayment {
			if _, ok := s.payment().(CardPayment); !ok {
				return apperr.Conflict("wallet payments are confirmed after proof processing")
			}
		}
	case StepAddress, StepDelivery:
		if s.PaymentStarted() {
			return apperr.Conflict("payment already started for this checkout")
		}
	}

	s.Step = to
	return nil
}

func (s *Session) payment() Payment {
	if s.Method == "" {
		return nil
	}
	p, err := ParsePayment(string(s.Method))
	if err != nil {
		return nil
	}
	return p
}

// previous returns the step Back navigates to.
func previous(step Step) (Step, bool) {
	switch step {
	case StepAddress:
		return StepDelivery, true
	case StepPayment:
		return StepAddress, true
	}
	return "", false
}
