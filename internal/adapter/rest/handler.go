package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/usecase/dashboard"
	"github.com/simaogato/equityflow-backend/internal/usecase/financing"
)

// Handler serves the JSON API. Money fields are integers in minor units.
type Handler struct {
	financing *financing.FinancingService
	dashboard *dashboard.DashboardService
	log       *logrus.Logger
}

func NewHandler(financingService *financing.FinancingService, dashboardService *dashboard.DashboardService, log *logrus.Logger) *Handler {
	return &Handler{
		financing: financingService,
		dashboard: dashboardService,
		log:       log,
	}
}

type createScheduleRequest struct {
	ID                 *uuid.UUID      `json:"id,omitempty"`
	PropertyValue      int64           `json:"property_value"`
	MonthlyInstallment int64           `json:"monthly_installment"`
	PlatformFeeRate    decimal.Decimal `json:"platform_fee_rate"`
	InvestorYieldRate  decimal.Decimal `json:"investor_yield_rate"`
	Currency           string          `json:"currency"`
	StartDate          time.Time       `json:"start_date"`
}

type scheduleResponse struct {
	ID                 uuid.UUID       `json:"id"`
	PropertyValue      int64           `json:"property_value"`
	MonthlyInstallment int64           `json:"monthly_installment"`
	PlatformFeeRate    decimal.Decimal `json:"platform_fee_rate"`
	InvestorYieldRate  decimal.Decimal `json:"investor_yield_rate"`
	Currency           string          `json:"currency"`
	StartDate          time.Time       `json:"start_date"`
	CreatedAt          time.Time       `json:"created_at"`
}

type paymentConfirmation struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	Amount     int64     `json:"amount"`
	ReceivedAt time.Time `json:"received_at"`
}

type allocationResponse struct {
	PlatformFee   int64 `json:"platform_fee"`
	InvestorYield int64 `json:"investor_yield"`
	EquityPortion int64 `json:"equity_portion"`
}

type disbursementResponse struct {
	ID     uuid.UUID `json:"id"`
	Kind   string    `json:"kind"`
	Amount int64     `json:"amount"`
}

type paymentResponse struct {
	PaymentID     uuid.UUID              `json:"payment_id"`
	Allocation    allocationResponse     `json:"allocation"`
	Overpaid      int64                  `json:"overpaid"`
	Disbursements []disbursementResponse `json:"disbursements"`
	Position      positionResponse       `json:"position"`
}

type positionResponse struct {
	ScheduleID           uuid.UUID  `json:"schedule_id"`
	Currency             string     `json:"currency"`
	PropertyValue        int64      `json:"property_value"`
	CumulativeEquityPaid int64      `json:"cumulative_equity_paid"`
	RemainingBalance     int64      `json:"remaining_balance"`
	EquityPercentage     string     `json:"equity_percentage"`
	State                string     `json:"state"`
	PaymentsReceived     int        `json:"payments_received"`
	LastPaymentAt        *time.Time `json:"last_payment_at"`
	MonthsToPayoff       *int       `json:"months_to_payoff"`
	Display              display    `json:"display"`
}

// display carries pre-formatted strings for dashboards
type display struct {
	EquityPaid       string `json:"equity_paid"`
	RemainingBalance string `json:"remaining_balance"`
	EquityPercentage string `json:"equity_percentage"`
}

type reconcileResponse struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	Consistent bool      `json:"consistent"`
	Mismatches []string  `json:"mismatches"`
}

type currencyTotalsResponse struct {
	Currency          string  `json:"currency"`
	PropertyValue     int64   `json:"property_value"`
	EquityPaid        int64   `json:"equity_paid"`
	RemainingBalance  int64   `json:"remaining_balance"`
	EquityPercentage  string  `json:"equity_percentage"`
	SchedulesAccruing int     `json:"schedules_accruing"`
	SchedulesPaidOff  int     `json:"schedules_paid_off"`
	PaymentsReceived  int     `json:"payments_received"`
	Display           display `json:"display"`
}

type portfolioResponse struct {
	Schedules int                      `json:"schedules"`
	Totals    []currencyTotalsResponse `json:"totals"`
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSchedule handles POST /v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	input := financing.CreateScheduleInput{
		PropertyValue:      domain.Money(req.PropertyValue),
		MonthlyInstallment: domain.Money(req.MonthlyInstallment),
		PlatformFeeRate:    req.PlatformFeeRate,
		InvestorYieldRate:  req.InvestorYieldRate,
		Currency:           req.Currency,
		StartDate:          req.StartDate,
	}
	if req.ID != nil {
		input.ID = *req.ID
	}

	schedule, err := h.financing.CreateSchedule(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, scheduleResponse{
		ID:                 schedule.ID,
		PropertyValue:      int64(schedule.PropertyValue),
		MonthlyInstallment: int64(schedule.MonthlyInstallment),
		PlatformFeeRate:    schedule.PlatformFeeRate,
		InvestorYieldRate:  schedule.InvestorYieldRate,
		Currency:           schedule.Currency,
		StartDate:          schedule.StartDate,
		CreatedAt:          schedule.CreatedAt,
	})
}

// GetPosition handles GET /v1/schedules/{id}/position
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	position, err := h.financing.GetPosition(r.Context(), scheduleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(position))
}

// ReconcileLedger handles POST /v1/schedules/{id}/reconcile
func (h *Handler) ReconcileLedger(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	report, err := h.financing.ReconcileLedger(r.Context(), scheduleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	mismatches := report.Mismatches
	if mismatches == nil {
		mismatches = []string{}
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		ScheduleID: report.ScheduleID,
		Consistent: report.Consistent,
		Mismatches: mismatches,
	})
}

// PaymentWebhook handles POST /v1/webhooks/payments, the processor's
// confirmation that an installment cleared. Redeliveries of an already
// recorded payment are acknowledged with 200 so the processor stops retrying.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentConfirmation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PaymentID == uuid.Nil || req.ScheduleID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "payment_id and schedule_id are required")
		return
	}
	if req.ReceivedAt.IsZero() {
		writeError(w, http.StatusBadRequest, "received_at is required")
		return
	}

	result, err := h.financing.RecordPayment(r.Context(), financing.RecordPaymentInput{
		PaymentID:  req.PaymentID,
		ScheduleID: req.ScheduleID,
		Amount:     domain.Money(req.Amount),
		ReceivedAt: req.ReceivedAt.UTC(),
	})
	if errors.Is(err, domain.ErrDuplicatePayment) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate", "payment_id": req.PaymentID.String()})
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	disbursements := make([]disbursementResponse, 0, len(result.Disbursements))
	for _, d := range result.Disbursements {
		disbursements = append(disbursements, disbursementResponse{
			ID:     d.ID,
			Kind:   string(d.Kind),
			Amount: int64(d.Amount),
		})
	}

	writeJSON(w, http.StatusCreated, paymentResponse{
		PaymentID: result.Payment.ID,
		Allocation: allocationResponse{
			PlatformFee:   int64(result.Allocation.PlatformFee),
			InvestorYield: int64(result.Allocation.InvestorYield),
			EquityPortion: int64(result.Allocation.EquityPortion),
		},
		Overpaid:      int64(result.Overpaid),
		Disbursements: disbursements,
		Position:      toPositionResponse(result.Position),
	})
}

// GetPortfolio handles GET /v1/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.GetPortfolio(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := portfolioResponse{
		Schedules: summary.Schedules,
		Totals:    make([]currencyTotalsResponse, 0, len(summary.Totals)),
	}
	for _, t := range summary.Totals {
		resp.Totals = append(resp.Totals, currencyTotalsResponse{
			Currency:          t.Currency,
			PropertyValue:     int64(t.PropertyValue),
			EquityPaid:        int64(t.EquityPaid),
			RemainingBalance:  int64(t.RemainingBalance),
			EquityPercentage:  t.EquityPercentage.String(),
			SchedulesAccruing: t.SchedulesAccruing,
			SchedulesPaidOff:  t.SchedulesPaidOff,
			PaymentsReceived:  t.PaymentsReceived,
			Display: display{
				EquityPaid:       dashboard.FormatMoney(t.EquityPaid, t.Currency),
				RemainingBalance: dashboard.FormatMoney(t.RemainingBalance, t.Currency),
				EquityPercentage: dashboard.FormatPercent(t.EquityPercentage),
			},
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func toPositionResponse(p *financing.Position) positionResponse {
	return positionResponse{
		ScheduleID:           p.ScheduleID,
		Currency:             p.Currency,
		PropertyValue:        int64(p.PropertyValue),
		CumulativeEquityPaid: int64(p.CumulativeEquityPaid),
		RemainingBalance:     int64(p.RemainingBalance),
		EquityPercentage:     p.EquityPercentage.String(),
		State:                string(p.State),
		PaymentsReceived:     p.PaymentsReceived,
		LastPaymentAt:        p.LastPaymentAt,
		MonthsToPayoff:       p.MonthsToPayoff,
		Display: display{
			EquityPaid:       dashboard.FormatMoney(p.CumulativeEquityPaid, p.Currency),
			RemainingBalance: dashboard.FormatMoney(p.RemainingBalance, p.Currency),
			EquityPercentage: dashboard.FormatPercent(p.EquityPercentage),
		},
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var invalidSchedule *domain.InvalidScheduleError
	var paidOff *domain.AlreadyPaidOffError

	switch {
	case errors.As(err, &invalidSchedule),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrMissingPaymentID),
		errors.Is(err, domain.ErrMissingReceivedAt):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicatePayment),
		errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.As(err, &paidOff),
		errors.Is(err, domain.ErrOutOfOrderPayment),
		errors.Is(err, domain.ErrScheduleMismatch):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
