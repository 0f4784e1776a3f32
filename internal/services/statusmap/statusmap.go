// Package statusmap maps 17track (main status, sub-status) pairs onto the closed canonical
// vocabulary and resolves the completion classification.
package statusmap

import (
	"fmt"

	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/BearBump/TrackRecon/internal/services/sls"
)

type Canonical string

const (
	NotFound                  Canonical = "NOT_FOUND"
	Pending                   Canonical = "PENDING"
	PickedUp                  Canonical = "PICKED_UP"
	InTransit                 Canonical = "IN_TRANSIT"
	Departed                  Canonical = "DEPARTED"
	Arrived                   Canonical = "ARRIVED"
	CustomsProcessing         Canonical = "CUSTOMS_PROCESSING"
	CustomsCleared            Canonical = "CUSTOMS_CLEARED"
	CustomsHold               Canonical = "CUSTOMS_HOLD"
	AvailableForPickup        Canonical = "AVAILABLE_FOR_PICKUP"
	OutForDelivery            Canonical = "OUT_FOR_DELIVERY"
	DeliveryFailed            Canonical = "DELIVERY_FAILED"
	DeliveryFailedNoRecipient Canonical = "DELIVERY_FAILED_NO_RECIPIENT"
	DeliveryFailedSecurity    Canonical = "DELIVERY_FAILED_SECURITY"
	DeliveryRefused           Canonical = "DELIVERY_REFUSED"
	DeliveryFailedAddress     Canonical = "DELIVERY_FAILED_ADDRESS"
	Delivered                 Canonical = "DELIVERED"
	Exception                 Canonical = "EXCEPTION"
	Returning                 Canonical = "RETURNING"
	Returned                  Canonical = "RETURNED"
	ExceptionNoRecipient      Canonical = "EXCEPTION_NO_RECIPIENT"
	ExceptionSecurity         Canonical = "EXCEPTION_SECURITY"
	ExceptionDamaged          Canonical = "EXCEPTION_DAMAGED"
	ExceptionRefused          Canonical = "EXCEPTION_REFUSED"
	Delayed                   Canonical = "DELAYED"
	ExceptionLost             Canonical = "EXCEPTION_LOST"
	ExceptionDestroyed        Canonical = "EXCEPTION_DESTROYED"
	ExceptionCancelled        Canonical = "EXCEPTION_CANCELLED"
	Expired                   Canonical = "EXPIRED"

	// Unknown is the explicit unmapped variant. Resolution keeps the raw strings next to it.
	Unknown Canonical = "UNKNOWN"
)

// 17track main statuses.
const (
	MainNotFound           = "NotFound"
	MainInfoReceived       = "InfoReceived"
	MainInTransit          = "InTransit"
	MainExpired            = "Expired"
	MainAvailableForPickup = "AvailableForPickup"
	MainOutForDelivery     = "OutForDelivery"
	MainDeliveryFailure    = "DeliveryFailure"
	MainDelivered          = "Delivered"
	MainException          = "Exception"
)

// Resolution is the result of mapping one carrier status pair.
type Resolution struct {
	Status     Canonical
	Completion *models.CompletionType

	// Unmapped is true when neither table knew the pair. RawMain/RawSub keep what the carrier
	// actually sent.
	Unmapped bool
	RawMain  string
	RawSub   string
}

func (r Resolution) String() string {
	if r.Unmapped {
		if r.RawSub != "" {
			return fmt.Sprintf("%s(%s/%s)", Unknown, r.RawMain, r.RawSub)
		}
		return fmt.Sprintf("%s(%s)", Unknown, r.RawMain)
	}
	return string(r.Status)
}

type pair struct {
	main string
	sub  string
}

// Loss pairs (Exception_Lost etc.) never reach this table because Completion fires first; their
// rows are kept so the table covers the whole carrier vocabulary.
var bySubStatus = map[pair]Canonical{
	{MainNotFound, "NotFound_Other"}:       NotFound,
	{MainNotFound, "NotFound_InvalidCode"}: NotFound,

	{MainInfoReceived, "InfoReceived"}: Pending,

	{MainInTransit, "InTransit_PickedUp"}:                    PickedUp,
	{MainInTransit, "InTransit_Other"}:                       InTransit,
	{MainInTransit, "InTransit_Departure"}:                   Departed,
	{MainInTransit, "InTransit_Arrival"}:                     Arrived,
	{MainInTransit, "InTransit_CustomsProcessing"}:           CustomsProcessing,
	{MainInTransit, "InTransit_CustomsReleased"}:             CustomsCleared,
	{MainInTransit, "InTransit_CustomsRequiringInformation"}: CustomsHold,

	{MainExpired, "Expired_Other"}: Expired,

	{MainAvailableForPickup, "AvailableForPickup_Other"}: AvailableForPickup,

	{MainOutForDelivery, "OutForDelivery_Other"}: OutForDelivery,

	{MainDeliveryFailure, "DeliveryFailure_Other"}:          DeliveryFailed,
	{MainDeliveryFailure, "DeliveryFailure_NoBody"}:         DeliveryFailedNoRecipient,
	{MainDeliveryFailure, "DeliveryFailure_Security"}:       DeliveryFailedSecurity,
	{MainDeliveryFailure, "DeliveryFailure_Rejected"}:       DeliveryRefused,
	{MainDeliveryFailure, "DeliveryFailure_InvalidAddress"}: DeliveryFailedAddress,

	{MainDelivered, "Delivered_Other"}: Delivered,

	{MainException, "Exception_Other"}:     Exception,
	{MainException, "Exception_Returning"}: Returning,
	{MainException, "Exception_Returned"}:  Returned,
	{MainException, "Exception_NoBody"}:    ExceptionNoRecipient,
	{MainException, "Exception_Security"}:  ExceptionSecurity,
	{MainException, "Exception_Damage"}:    ExceptionDamaged,
	{MainException, "Exception_Rejected"}:  ExceptionRefused,
	{MainException, "Exception_Delayed"}:   Delayed,
	{MainException, "Exception_Lost"}:      ExceptionLost,
	{MainException, "Exception_Destroyed"}: ExceptionDestroyed,
	{MainException, "Exception_Cancel"}:    ExceptionCancelled,
}

var byMainStatus = map[string]Canonical{
	MainNotFound:           NotFound,
	MainInfoReceived:       Pending,
	MainInTransit:          InTransit,
	MainAvailableForPickup: AvailableForPickup,
	MainOutForDelivery:     OutForDelivery,
	MainDeliveryFailure:    DeliveryFailed,
	MainDelivered:          Delivered,
	MainException:          Exception,
	MainExpired:            Expired,
}

// Completion returns the completion classification for a status pair, or nil while the shipment
// is still active.
func Completion(main, sub string) *models.CompletionType {
	var c models.CompletionType
	switch {
	case main == MainDelivered:
		c = models.CompletionDelivered
	case main == MainExpired:
		c = models.CompletionExpired
	case main == MainException && (sub == "Exception_Returning" || sub == "Exception_Returned"):
		c = models.CompletionReturned
	case sls.Classify(main, sub).IsLoss:
		c = models.CompletionException
	default:
		return nil
	}
	return &c
}

// Map never fails: pairs it does not know resolve to Unknown with the raw values kept.
func Map(main, sub string) Resolution {
	res := Resolution{RawMain: main, RawSub: sub}

	if c := Completion(main, sub); c != nil {
		res.Completion = c
		res.Status = Canonical(*c)
		return res
	}

	if s, ok := bySubStatus[pair{main, sub}]; ok {
		res.Status = s
		return res
	}
	if s, ok := byMainStatus[main]; ok {
		res.Status = s
		return res
	}

	res.Status = Unknown
	res.Unmapped = true
	return res
}
