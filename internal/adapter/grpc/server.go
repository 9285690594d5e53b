package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/usecase/dashboard"
	"github.com/simaogato/equityflow-backend/internal/usecase/financing"
)

// Server implements the FinancingService gRPC server
type Server struct {
	FinancingService *financing.FinancingService
	DashboardService *dashboard.DashboardService
}

var _ FinancingServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(
	financingService *financing.FinancingService,
	dashboardService *dashboard.DashboardService,
) *Server {
	return &Server{
		FinancingService: financingService,
		DashboardService: dashboardService,
	}
}

// CreateSchedule handles the CreateSchedule RPC
func (s *Server) CreateSchedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input financing.CreateScheduleInput
	var err error

	if raw := stringField(req, "id"); raw != "" {
		if input.ID, err = uuid.Parse(raw); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid id format: %v", err)
		}
	}
	if input.PropertyValue, err = moneyField(req, "property_value"); err != nil {
		return nil, err
	}
	if input.MonthlyInstallment, err = moneyField(req, "monthly_installment"); err != nil {
		return nil, err
	}
	if input.PlatformFeeRate, err = decimal.NewFromString(stringField(req, "platform_fee_rate")); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid platform_fee_rate format: %v", err)
	}
	if input.InvestorYieldRate, err = decimal.NewFromString(stringField(req, "investor_yield_rate")); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid investor_yield_rate format: %v", err)
	}
	if input.StartDate, err = timeField(req, "start_date"); err != nil {
		return nil, err
	}
	input.Currency = stringField(req, "currency")

	schedule, err := s.FinancingService.CreateSchedule(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(map[string]interface{}{
		"schedule": scheduleToMap(schedule),
	})
}

// RecordPayment handles the RecordPayment RPC, the payment processor's
// confirmation of a cleared installment
func (s *Server) RecordPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	paymentID, err := uuidField(req, "payment_id")
	if err != nil {
		return nil, err
	}
	scheduleID, err := uuidField(req, "schedule_id")
	if err != nil {
		return nil, err
	}
	amount, err := moneyField(req, "amount")
	if err != nil {
		return nil, err
	}
	receivedAt, err := timeField(req, "received_at")
	if err != nil {
		return nil, err
	}

	result, err := s.FinancingService.RecordPayment(ctx, financing.RecordPaymentInput{
		PaymentID:  paymentID,
		ScheduleID: scheduleID,
		Amount:     amount,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		return nil, mapError(err)
	}

	disbursements := make([]interface{}, 0, len(result.Disbursements))
	for _, d := range result.Disbursements {
		disbursements = append(disbursements, map[string]interface{}{
			"id":     d.ID.String(),
			"kind":   string(d.Kind),
			"amount": d.Amount.String(),
		})
	}

	return toStruct(map[string]interface{}{
		"payment_id": result.Payment.ID.String(),
		"allocation": map[string]interface{}{
			"platform_fee":   result.Allocation.PlatformFee.String(),
			"investor_yield": result.Allocation.InvestorYield.String(),
			"equity_portion": result.Allocation.EquityPortion.String(),
		},
		"overpaid":      result.Overpaid.String(),
		"disbursements": disbursements,
		"position":      positionToMap(result.Position),
	})
}

// GetPosition handles the GetPosition RPC
func (s *Server) GetPosition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scheduleID, err := uuidField(req, "schedule_id")
	if err != nil {
		return nil, err
	}

	position, err := s.FinancingService.GetPosition(ctx, scheduleID)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(map[string]interface{}{
		"position": positionToMap(position),
	})
}

// ReconcileLedger handles the ReconcileLedger RPC
func (s *Server) ReconcileLedger(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scheduleID, err := uuidField(req, "schedule_id")
	if err != nil {
		return nil, err
	}

	report, err := s.FinancingService.ReconcileLedger(ctx, scheduleID)
	if err != nil {
		return nil, mapError(err)
	}

	mismatches := make([]interface{}, 0, len(report.Mismatches))
	for _, m := range report.Mismatches {
		mismatches = append(mismatches, m)
	}

	return toStruct(map[string]interface{}{
		"schedule_id": report.ScheduleID.String(),
		"consistent":  report.Consistent,
		"mismatches":  mismatches,
	})
}

// GetPortfolio handles the GetPortfolio RPC
func (s *Server) GetPortfolio(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	summary, err := s.DashboardService.GetPortfolio(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	totals := make([]interface{}, 0, len(summary.Totals))
	for _, t := range summary.Totals {
		totals = append(totals, map[string]interface{}{
			"currency":           t.Currency,
			"property_value":     t.PropertyValue.String(),
			"equity_paid":        t.EquityPaid.String(),
			"remaining_balance":  t.RemainingBalance.String(),
			"equity_percentage":  t.EquityPercentage.String(),
			"schedules_accruing": t.SchedulesAccruing,
			"schedules_paid_off": t.SchedulesPaidOff,
			"payments_received":  t.PaymentsReceived,
		})
	}

	return toStruct(map[string]interface{}{
		"schedules": summary.Schedules,
		"totals":    totals,
	})
}

func scheduleToMap(schedule *domain.InstallmentSchedule) map[string]interface{} {
	return map[string]interface{}{
		"id":                  schedule.ID.String(),
		"property_value":      schedule.PropertyValue.String(),
		"monthly_installment": schedule.MonthlyInstallment.String(),
		"platform_fee_rate":   schedule.PlatformFeeRate.String(),
		"investor_yield_rate": schedule.InvestorYieldRate.String(),
		"currency":            schedule.Currency,
		"start_date":          schedule.StartDate.Format(time.RFC3339),
		"created_at":          schedule.CreatedAt.Format(time.RFC3339Nano),
	}
}

func positionToMap(position *financing.Position) map[string]interface{} {
	m := map[string]interface{}{
		"schedule_id":            position.ScheduleID.String(),
		"currency":               position.Currency,
		"property_value":         position.PropertyValue.String(),
		"cumulative_equity_paid": position.CumulativeEquityPaid.String(),
		"remaining_balance":      position.RemainingBalance.String(),
		"equity_percentage":      position.EquityPercentage.String(),
		"state":                  string(position.State),
		"payments_received":      position.PaymentsReceived,
		"last_payment_at":        nil,
		"months_to_payoff":       nil,
	}
	if position.LastPaymentAt != nil {
		m["last_payment_at"] = position.LastPaymentAt.Format(time.RFC3339Nano)
	}
	if position.MonthsToPayoff != nil {
		m["months_to_payoff"] = *position.MonthsToPayoff
	}
	return m
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(req, name))
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return id, nil
}

func moneyField(req *structpb.Struct, name string) (domain.Money, error) {
	amount, err := domain.ParseMoney(stringField(req, name))
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return amount, nil
}

func timeField(req *structpb.Struct, name string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, stringField(req, name))
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return t.UTC(), nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var invalidSchedule *domain.InvalidScheduleError
	var paidOff *domain.AlreadyPaidOffError

	switch {
	case errors.As(err, &invalidSchedule),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrMissingPaymentID),
		errors.Is(err, domain.ErrMissingReceivedAt):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicatePayment):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.As(err, &paidOff),
		errors.Is(err, domain.ErrOutOfOrderPayment),
		errors.Is(err, domain.ErrScheduleMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	}

	// Default to Internal error for unknown errors
	return status.Error(codes.Internal, err.Error())
}
