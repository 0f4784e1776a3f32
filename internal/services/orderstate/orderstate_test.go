package orderstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/TrackRecon/internal/broker/messages"
	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/BearBump/TrackRecon/internal/services/reconcile"
	"github.com/BearBump/TrackRecon/internal/services/sls"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) ApplyOrderUpdate(ctx context.Context, upd models.OrderUpdate) ([]*models.OrderStep, error) {
	args := m.Called(ctx, upd)
	steps, _ := args.Get(0).([]*models.OrderStep)
	return steps, args.Error(1)
}

func (m *storeMock) IncrementCarrierLosses(ctx context.Context, carrierID uint64) error {
	return m.Called(ctx, carrierID).Error(0)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type UpdaterSuite struct {
	suite.Suite
	store *storeMock
	u     *Updater
}

func (s *UpdaterSuite) SetupTest() {
	s.store = &storeMock{}
	s.u = New(s.store).WithClock(func() time.Time { return now })
}

func (s *UpdaterSuite) TearDownTest() {
	s.store.AssertExpectations(s.T())
}

func order() *models.Order {
	carrierID := uint64(3)
	return &models.Order{ID: 9, TrackingNumber: "TN9", CarrierID: &carrierID, Status: "IN_TRANSIT"}
}

func lossVerdict() sls.BatchVerdict {
	return sls.BatchVerdict{IsLoss: true, Reason: sls.ReasonLost, ExceptionDetails: "Status: Exception, Sub-Status: Exception_Lost"}
}

func (s *UpdaterSuite) TestBuildUpdate_StatusOnlyWithCurrentStatus() {
	upd, out := BuildUpdate(Input{Order: order(), Info: carrier.TrackingInfo{Success: true}}, now)
	s.False(upd.SetStatus)
	s.False(out.StatusChanged)
	s.Equal("IN_TRANSIT", out.NewStatus)

	upd, out = BuildUpdate(Input{Order: order(), Info: carrier.TrackingInfo{
		Success:     true,
		OrderStatus: &carrier.OrderStatus{Current: "InTransit", SubStatus: "InTransit_CustomsReleased"},
	}}, now)
	s.True(upd.SetStatus)
	s.Equal("CUSTOMS_CLEARED", upd.Status)
	s.Require().NotNil(upd.SubStatus)
	s.Equal("InTransit_CustomsReleased", *upd.SubStatus)
	s.True(out.StatusChanged)
	s.Nil(upd.CompletionType)
}

func (s *UpdaterSuite) TestBuildUpdate_LossIsMonotonic() {
	o := order()
	o.LossFlag = true
	reason := string(sls.ReasonDamaged)
	o.LossReason = &reason

	upd, out := BuildUpdate(Input{Order: o, Info: carrier.TrackingInfo{Success: true}, Verdict: sls.BatchVerdict{}}, now)
	s.True(upd.LossFlag)
	s.False(out.LossNewlySet)
	s.Nil(upd.LossReason)

	upd, out = BuildUpdate(Input{Order: o, Verdict: lossVerdict()}, now)
	s.True(upd.LossFlag)
	s.False(out.LossNewlySet)
	s.Nil(upd.LossReason)
}

func (s *UpdaterSuite) TestBuildUpdate_CompletionIsNeverOverwritten() {
	o := order()
	exc := models.CompletionException
	o.CompletionType = &exc

	upd, out := BuildUpdate(Input{Order: o, Info: carrier.TrackingInfo{
		Success:     true,
		OrderStatus: &carrier.OrderStatus{Current: "Delivered"},
	}}, now)
	s.Equal("DELIVERED", upd.Status)
	s.Nil(upd.CompletionType)
	s.Nil(out.Completion)
	s.Nil(upd.CarrierConfirmedDeliveryAt)
}

func (s *UpdaterSuite) TestBuildUpdate_DeliveredDefaultsConfirmationToNow() {
	upd, out := BuildUpdate(Input{Order: order(), Info: carrier.TrackingInfo{
		Success:     true,
		OrderStatus: &carrier.OrderStatus{Current: "Delivered", IsDelivered: true},
	}}, now)
	s.Require().NotNil(out.Completion)
	s.Equal(models.CompletionDelivered, *out.Completion)
	s.Require().NotNil(upd.CarrierConfirmedDeliveryAt)
	s.True(upd.CarrierConfirmedDeliveryAt.Equal(now))

	confirmed := now.Add(-time.Hour)
	eta := now.Add(-2 * time.Hour)
	upd, _ = BuildUpdate(Input{Order: order(), Info: carrier.TrackingInfo{
		Success:     true,
		OrderStatus: &carrier.OrderStatus{Current: "Delivered", ConfirmedDelivery: &confirmed, EstimatedDelivery: &eta},
	}}, now)
	s.True(upd.CarrierConfirmedDeliveryAt.Equal(confirmed))
	s.True(upd.CarrierEstimatedDeliveryAt.Equal(eta))
}

func (s *UpdaterSuite) TestBuildUpdate_EventLossCompletesAsException() {
	upd, out := BuildUpdate(Input{
		Order:   order(),
		Info:    carrier.TrackingInfo{Success: true, OrderStatus: &carrier.OrderStatus{Current: "InTransit"}},
		Verdict: lossVerdict(),
	}, now)
	s.True(upd.LossFlag)
	s.True(out.LossNewlySet)
	s.Require().NotNil(upd.CompletionType)
	s.Equal(models.CompletionException, *upd.CompletionType)
	s.Equal("SHIPMENT_LOST", *upd.LossReason)
	s.Equal("Status: Exception, Sub-Status: Exception_Lost", *upd.ExceptionDetails)
}

func (s *UpdaterSuite) TestApply_NewLossIncrementsCarrier() {
	s.store.On("ApplyOrderUpdate", mock.Anything, mock.MatchedBy(func(u models.OrderUpdate) bool {
		return u.OrderID == 9 && u.LossFlag
	})).Return(nil, nil).Once()
	s.store.On("IncrementCarrierLosses", mock.Anything, uint64(3)).Return(nil).Once()

	out, err := s.u.Apply(context.Background(), Input{Order: order(), Verdict: lossVerdict()})
	s.Require().NoError(err)
	s.True(out.LossNewlySet)
	s.Nil(out.Notification)
}

func (s *UpdaterSuite) TestApply_CarrierIncrementFailureIsTolerated() {
	s.store.On("ApplyOrderUpdate", mock.Anything, mock.Anything).Return(nil, nil).Once()
	s.store.On("IncrementCarrierLosses", mock.Anything, uint64(3)).Return(errors.New("lock timeout")).Once()

	_, err := s.u.Apply(context.Background(), Input{Order: order(), Verdict: lossVerdict()})
	s.Require().NoError(err)
}

func (s *UpdaterSuite) TestApply_StoreFailure() {
	s.store.On("ApplyOrderUpdate", mock.Anything, mock.Anything).Return(nil, errors.New("conn closed")).Once()

	_, err := s.u.Apply(context.Background(), Input{Order: order(), Verdict: lossVerdict()})
	s.Require().Error(err)
	s.Contains(err.Error(), "apply order update 9")
	s.store.AssertNotCalled(s.T(), "IncrementCarrierLosses", mock.Anything, mock.Anything)
}

func (s *UpdaterSuite) TestApply_NotificationOnlyForInsertedSteps() {
	ts := now.Add(-time.Hour)
	rec := reconcile.Reconcile(9, nil, []carrier.Event{{Timestamp: ts, Status: "InTransit", Location: "Leipzig"}})
	inserted := []*models.OrderStep{{ID: 77, OrderID: 9, Step: 1, Location: "Leipzig", Timestamp: ts}}

	s.store.On("ApplyOrderUpdate", mock.Anything, mock.Anything).Return(inserted, nil).Once()
	out, err := s.u.Apply(context.Background(), Input{Order: order(), Reconciled: rec})
	s.Require().NoError(err)
	s.Require().NotNil(out.Notification)
	s.Equal(messages.EventTypeOrderEvent, out.Notification.EventType)
	s.Equal([]uint64{77}, out.Notification.Data.OrderNewStepsIDs)
	s.Equal([]string{"Leipzig"}, out.Notification.Data.OrderNewLocations)
	s.True(out.Notification.Timestamp.Equal(now))

	// Every step collided in the database.
	s.store.On("ApplyOrderUpdate", mock.Anything, mock.Anything).Return([]*models.OrderStep{}, nil).Once()
	out, err = s.u.Apply(context.Background(), Input{Order: order(), Reconciled: rec})
	s.Require().NoError(err)
	s.Nil(out.Notification)
}

func TestUpdaterSuite(t *testing.T) {
	suite.Run(t, new(UpdaterSuite))
}
