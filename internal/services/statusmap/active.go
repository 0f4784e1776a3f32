package statusmap

var activeStatuses = []Canonical{
	NotFound,
	Pending,
	PickedUp,
	InTransit,
	Departed,
	Arrived,
	CustomsProcessing,
	CustomsCleared,
	CustomsHold,
	AvailableForPickup,
	OutForDelivery,
	DeliveryFailed,
	DeliveryFailedNoRecipient,
	DeliveryFailedSecurity,
	DeliveryFailedAddress,
	Delayed,
	Returning,
	Unknown,
}

// ActiveStatuses lists the canonical statuses of orders that are still tracked. Terminal states
// (delivered, returned, expired, exception and the loss variants) are left out.
func ActiveStatuses() []string {
	out := make([]string, 0, len(activeStatuses))
	for _, s := range activeStatuses {
		out = append(out, string(s))
	}
	return out
}

func (c Canonical) IsActive() bool {
	for _, s := range activeStatuses {
		if s == c {
			return true
		}
	}
	return false
}
