// Package sls detects shipment loss (SLS) conditions in 17track statuses.
package sls

import "fmt"

type Reason string

const (
	ReasonLost      Reason = "SHIPMENT_LOST"
	ReasonDestroyed Reason = "SHIPMENT_DESTROYED"
	ReasonCancelled Reason = "ORDER_CANCELLED"
	ReasonDamaged   Reason = "SHIPMENT_DAMAGED"
	ReasonRefused   Reason = "DELIVERY_REFUSED"
	ReasonException Reason = "SHIPMENT_EXCEPTION"
)

const (
	mainException       = "Exception"
	mainDeliveryFailure = "DeliveryFailure"
)

var exceptionLossReasons = map[string]Reason{
	"Exception_Lost":      ReasonLost,
	"Exception_Destroyed": ReasonDestroyed,
	"Exception_Cancel":    ReasonCancelled,
	"Exception_Damage":    ReasonDamaged,
	"Exception_Rejected":  ReasonRefused,
}

const deliveryFailureRejected = "DeliveryFailure_Rejected"

type Verdict struct {
	IsLoss bool
	// Reason is set only when IsLoss is true.
	Reason Reason
}

// Classify flags a single (main, sub) pair.
func Classify(main, sub string) Verdict {
	switch main {
	case mainException:
		if r, ok := exceptionLossReasons[sub]; ok {
			return Verdict{IsLoss: true, Reason: r}
		}
	case mainDeliveryFailure:
		if sub == deliveryFailureRejected {
			return Verdict{IsLoss: true, Reason: ReasonRefused}
		}
	}
	return Verdict{}
}

// Snapshot is the latest status reported for a shipment.
type Snapshot struct {
	Main string
	Sub  string
}

// Observation is one event as seen by Evaluate.
type Observation struct {
	Main     string
	Sub      string
	Location string
}

// BatchVerdict is the loss verdict for a whole reconciliation.
type BatchVerdict struct {
	IsLoss           bool
	Reason           Reason
	ExceptionDetails string

	// FromEvents is true when the loss came from an event rather than the snapshot. Carriers can
	// report a loss in history while the latest status says something else.
	FromEvents bool
}

// Evaluate checks the snapshot and every event. The first flagged event wins over the snapshot
// for reason and details.
func Evaluate(current *Snapshot, events []Observation) BatchVerdict {
	var out BatchVerdict

	if current != nil {
		if v := Classify(current.Main, current.Sub); v.IsLoss {
			out.IsLoss = true
			out.Reason = v.Reason
			out.ExceptionDetails = fmt.Sprintf("Status: %s, Sub-Status: %s", current.Main, orNA(current.Sub))
		}
	}

	for _, e := range events {
		v := Classify(e.Main, e.Sub)
		if !v.IsLoss {
			continue
		}
		out.IsLoss = true
		out.Reason = v.Reason
		out.FromEvents = true
		out.ExceptionDetails = fmt.Sprintf("Event Status: %s, Sub-Status: %s, Location: %s", e.Main, orNA(e.Sub), e.Location)
		break
	}

	return out
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
