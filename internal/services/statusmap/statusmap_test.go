package statusmap

import (
	"testing"

	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/stretchr/testify/require"
)

var vocabulary = map[string][]string{
	MainNotFound:           {"", "NotFound_Other", "NotFound_InvalidCode"},
	MainInfoReceived:       {"", "InfoReceived"},
	MainInTransit:          {"", "InTransit_PickedUp", "InTransit_Other", "InTransit_Departure", "InTransit_Arrival", "InTransit_CustomsProcessing", "InTransit_CustomsReleased", "InTransit_CustomsRequiringInformation"},
	MainExpired:            {"", "Expired_Other"},
	MainAvailableForPickup: {"", "AvailableForPickup_Other"},
	MainOutForDelivery:     {"", "OutForDelivery_Other"},
	MainDeliveryFailure:    {"", "DeliveryFailure_Other", "DeliveryFailure_NoBody", "DeliveryFailure_Security", "DeliveryFailure_Rejected", "DeliveryFailure_InvalidAddress"},
	MainDelivered:          {"", "Delivered_Other"},
	MainException:          {"", "Exception_Other", "Exception_Returning", "Exception_Returned", "Exception_NoBody", "Exception_Security", "Exception_Damage", "Exception_Rejected", "Exception_Delayed", "Exception_Lost", "Exception_Destroyed", "Exception_Cancel"},
}

func TestMap_TotalOverVocabulary(t *testing.T) {
	for main, subs := range vocabulary {
		for _, sub := range subs {
			res := Map(main, sub)
			require.False(t, res.Unmapped, "%s/%s", main, sub)
			require.NotEqual(t, Unknown, res.Status, "%s/%s", main, sub)
			require.Equal(t, res, Map(main, sub), "deterministic %s/%s", main, sub)
		}
	}
}

func TestMap_TableRowsAreKnownPairs(t *testing.T) {
	for p := range bySubStatus {
		require.Contains(t, vocabulary[p.main], p.sub)
	}
}

func TestMap_Delivered(t *testing.T) {
	res := Map("Delivered", "")
	require.Equal(t, Delivered, res.Status)
	require.NotNil(t, res.Completion)
	require.Equal(t, models.CompletionDelivered, *res.Completion)
}

func TestMap_ExceptionLost(t *testing.T) {
	res := Map("Exception", "Exception_Lost")
	require.Equal(t, Exception, res.Status)
	require.NotNil(t, res.Completion)
	require.Equal(t, models.CompletionException, *res.Completion)
}

func TestMap_CustomsReleased(t *testing.T) {
	res := Map("InTransit", "InTransit_CustomsReleased")
	require.Equal(t, CustomsCleared, res.Status)
	require.Nil(t, res.Completion)
}

func TestMap_CompletionPriority(t *testing.T) {
	cases := []struct {
		main, sub string
		want      models.CompletionType
	}{
		{"Delivered", "Delivered_Other", models.CompletionDelivered},
		{"Expired", "Expired_Other", models.CompletionExpired},
		{"Exception", "Exception_Returning", models.CompletionReturned},
		{"Exception", "Exception_Returned", models.CompletionReturned},
		{"Exception", "Exception_Destroyed", models.CompletionException},
		{"Exception", "Exception_Cancel", models.CompletionException},
		{"Exception", "Exception_Damage", models.CompletionException},
		{"Exception", "Exception_Rejected", models.CompletionException},
		{"DeliveryFailure", "DeliveryFailure_Rejected", models.CompletionException},
	}
	for _, c := range cases {
		got := Completion(c.main, c.sub)
		require.NotNil(t, got, "%s/%s", c.main, c.sub)
		require.Equal(t, c.want, *got, "%s/%s", c.main, c.sub)
	}

	require.Nil(t, Completion("Exception", "Exception_Delayed"))
	require.Nil(t, Completion("DeliveryFailure", "DeliveryFailure_NoBody"))
	require.Nil(t, Completion("OutForDelivery", ""))
}

func TestMap_FallsBackToMainStatus(t *testing.T) {
	res := Map("InTransit", "InTransit_SomethingNew")
	require.Equal(t, InTransit, res.Status)
	require.False(t, res.Unmapped)
}

func TestMap_UnmappedKeepsRawValues(t *testing.T) {
	res := Map("Teleported", "Teleported_Moon")
	require.Equal(t, Unknown, res.Status)
	require.True(t, res.Unmapped)
	require.Nil(t, res.Completion)
	require.Equal(t, "UNKNOWN(Teleported/Teleported_Moon)", res.String())
	require.Equal(t, "UNKNOWN(Teleported)", Map("Teleported", "").String())
	require.True(t, res.Status.IsActive())
}

func TestActiveStatuses(t *testing.T) {
	require.True(t, InTransit.IsActive())
	require.True(t, Returning.IsActive())
	for _, c := range []Canonical{Delivered, Returned, Expired, Exception, ExceptionLost, DeliveryRefused} {
		require.False(t, c.IsActive(), c)
	}
	require.Len(t, ActiveStatuses(), len(activeStatuses))
}
