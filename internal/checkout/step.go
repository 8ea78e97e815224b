package checkout

// Step is where a checkout flow currently stands.
type Step string

const (
	StepShippingInfo  Step = "SHIPPING_INFO"
	StepPaymentMethod Step = "PAYMENT_METHOD"
	StepConfirmation  Step = "CONFIRMATION"
	StepSuccess       Step = "SUCCESS"
	StepAborted       Step = "ABORTED"
	StepPaymentFailed Step = "PAYMENT_FAILED"
)

func (s Step) IsTerminal() bool {
	return s == StepSuccess || s == StepAborted || s == StepPaymentFailed
}

func (s Step) String() string {
	return string(s)
}

var transitions = map[Step][]Step{
	StepShippingInfo:  {StepPaymentMethod, StepAborted},
	StepPaymentMethod: {StepShippingInfo, StepConfirmation, StepAborted},
	StepConfirmation:  {StepSuccess, StepPaymentFailed, StepAborted},
}

func CanTransitionTo(from, to Step) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
