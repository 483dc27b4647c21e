// Package service orchestrates gateway charges and reconciles webhook
// notifications against the registration store. Every reconciliation write is
// a conditional store operation, so redelivered and out-of-order
// notifications degrade to no-ops instead of corrupting settled payments.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/internal/agenda/store"
	"agendahub/internal/payment"
	"agendahub/internal/payment/gateway"
	"agendahub/internal/payment/metrics"
	"agendahub/internal/platform/events"
	"agendahub/pkg/platform/circuit"
	"agendahub/pkg/platform/sentinel"

	dErrors "agendahub/pkg/domain-errors"
)

// orderIDLength is the UUID prefix of every order id generated here. Webhook
// order ids shorter than this belong to some other system and are ignored.
const orderIDLength = 36

type Service struct {
	store     store.Store
	gateway   gateway.Client
	fees      payment.FeeTable
	serverKey string
	breaker   *circuit.Breaker
	metrics   *metrics.Metrics
	events    *events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(p *events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithFees(t payment.FeeTable) Option {
	return func(s *Service) { s.fees = t }
}

// withClock overrides time for tests.
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, gw gateway.Client, serverKey string, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("registration store is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	if serverKey == "" {
		return nil, fmt.Errorf("gateway server key is required")
	}

	svc := &Service{
		store:     st,
		gateway:   gw,
		fees:      payment.DefaultFees(),
		serverKey: serverKey,
		breaker:   circuit.New("payment-gateway"),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ChargeInput is the caller's choice of payment channel.
type ChargeInput struct {
	Method agenda.PaymentMethod
	Bank   string
}

// CreateCharge creates a gateway charge for a registration, or returns the
// outstanding one when an unexpired pending charge already exists.
func (s *Service) CreateCharge(ctx context.Context, agendaID uuid.UUID, role agenda.Role, regID uuid.UUID, in ChargeInput) (*agenda.Payment, error) {
	switch in.Method {
	case agenda.MethodBankTransfer, agenda.MethodEWallet, agenda.MethodQRIS, agenda.MethodCreditCard:
	case agenda.MethodCash:
		return nil, dErrors.New(dErrors.CodeBadRequest, "cash payments are collected on site, not through the gateway")
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported payment method")
	}
	if in.Method == agenda.MethodBankTransfer && in.Bank == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "bank is required for bank transfer")
	}

	a, err := s.store.GetAgenda(ctx, agendaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agenda not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load agenda")
	}

	reg, err := s.loadRegistration(ctx, agendaID, role, regID)
	if err != nil {
		return nil, err
	}

	if reg.Payment.Status == agenda.StatusSuccess {
		return nil, dErrors.New(dErrors.CodeConflict, "payment already completed")
	}
	if reg.Payment.Reusable(s.now()) {
		if s.metrics != nil {
			s.metrics.ChargesReused.Inc()
		}
		p := reg.Payment
		return &p, nil
	}

	total, err := s.fees.Total(in.Method, a.FeeAmount)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported payment method")
	}
	if total <= 0 {
		return nil, dErrors.New(dErrors.CodeUnprocessable, "computed charge amount is not positive")
	}

	// A fresh suffix per attempt keeps retried charges distinct at the
	// gateway while the registration id stays recoverable from the prefix.
	orderID := regID.String() + "-" + uuid.NewString()[:8]

	req := gateway.ChargeRequest{
		OrderID:     orderID,
		GrossAmount: total,
		Method:      in.Method,
		Bank:        in.Bank,
	}
	if guest, ok := reg.Identity.Guest(); ok {
		req.CustomerName = guest.FullName
		req.CustomerEmail = guest.Email
	}

	if s.breaker.IsOpen() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment gateway unavailable")
	}
	resp, err := s.gateway.Charge(ctx, req)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Warn("payment gateway circuit opened")
		}
		if s.metrics != nil {
			s.metrics.GatewayErrors.Inc()
		}
		s.logger.Error("gateway charge failed", "order_id", orderID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment gateway unavailable")
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.Info("payment gateway circuit closed")
	}

	p := agenda.Payment{
		Method:        in.Method,
		Status:        agenda.StatusPending,
		OrderID:       orderID,
		TransactionID: resp.TransactionID,
		Amount:        total,
		Expiry:        resp.Expiry,
		Bank:          resp.Bank,
		VANumber:      resp.VANumber,
		QRURL:         resp.QRURL,
	}

	applied, err := s.store.SavePaymentCharge(ctx, regID, p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist charge")
	}
	if !applied {
		// Settled between the read above and the write. The gateway charge
		// stays unpaid and expires on its own.
		return nil, dErrors.New(dErrors.CodeConflict, "payment already completed")
	}

	if s.metrics != nil {
		s.metrics.ChargesCreated.WithLabelValues(string(in.Method)).Inc()
	}
	if s.events != nil {
		s.events.Emit(ctx, events.Event{
			Type:           events.TypePaymentPending,
			AgendaID:       agendaID.String(),
			RegistrationID: regID.String(),
			Role:           string(reg.Role),
			Status:         string(agenda.StatusPending),
			At:             s.now(),
		})
	}
	s.logger.Info("charge created",
		"registration_id", regID,
		"order_id", orderID,
		"method", in.Method,
		"amount", total,
	)
	return &p, nil
}

// GetPayment returns the payment sub-record of a registration.
func (s *Service) GetPayment(ctx context.Context, agendaID uuid.UUID, role agenda.Role, regID uuid.UUID) (*agenda.Payment, error) {
	reg, err := s.loadRegistration(ctx, agendaID, role, regID)
	if err != nil {
		return nil, err
	}
	p := reg.Payment
	return &p, nil
}

func (s *Service) loadRegistration(ctx context.Context, agendaID uuid.UUID, role agenda.Role, regID uuid.UUID) (*agenda.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load registration")
	}
	// The registration must live exactly where the URL says it does.
	if reg.AgendaID != agendaID || reg.Role != role {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}

// HandleNotification reconciles one webhook notification. Signature
// verification happens before anything else; after that, every outcome that
// is not an infrastructure failure returns nil so the gateway stops
// redelivering.
func (s *Service) HandleNotification(ctx context.Context, n payment.Notification) error {
	if !gateway.ValidSignature(n.OrderID, n.StatusCode, n.GrossAmount, s.serverKey, n.SignatureKey) {
		if s.metrics != nil {
			s.metrics.WebhookRejected.Inc()
		}
		s.logger.Warn("webhook signature rejected", "order_id", n.OrderID)
		return dErrors.New(dErrors.CodeUnauthorized, "invalid signature")
	}

	regID, ok := registrationIDFromOrder(n.OrderID)
	if !ok {
		s.observeWebhook("unmatched")
		s.logger.Info("webhook for unknown order", "order_id", n.OrderID)
		return nil
	}

	switch n.TransactionStatus {
	case "capture", "settlement":
		if n.FraudStatus != "" && n.FraudStatus != "accept" {
			s.observeWebhook("fraud_hold")
			s.logger.Warn("settlement held for fraud review", "order_id", n.OrderID, "fraud_status", n.FraudStatus)
			return nil
		}
		return s.settle(ctx, regID, n)
	case "cancel", "deny", "expire":
		return s.close(ctx, regID, n)
	case "pending":
		s.observeWebhook("pending")
		return nil
	default:
		s.observeWebhook("ignored")
		s.logger.Info("webhook status ignored", "order_id", n.OrderID, "transaction_status", n.TransactionStatus)
		return nil
	}
}

func (s *Service) settle(ctx context.Context, regID uuid.UUID, n payment.Notification) error {
	applied, err := s.store.SettlePayment(ctx, regID, n.TransactionID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "settle payment")
	}
	if !applied {
		// Already successful (redelivery) or no such registration.
		s.observeWebhook("settle_noop")
		return nil
	}

	s.observeWebhook("settled")
	reg, err := s.store.GetRegistration(ctx, regID)
	if err == nil && s.events != nil {
		s.events.Emit(ctx, events.Event{
			Type:           events.TypePaymentSettled,
			AgendaID:       reg.AgendaID.String(),
			RegistrationID: regID.String(),
			Role:           string(reg.Role),
			Status:         string(agenda.StatusSuccess),
			At:             s.now(),
		})
	}
	s.logger.Info("payment settled", "registration_id", regID, "transaction_id", n.TransactionID)
	return nil
}

func (s *Service) close(ctx context.Context, regID uuid.UUID, n payment.Notification) error {
	status := closedStatus(n.TransactionStatus)

	// Guests have no account to come back to, so a dead charge releases
	// their seat entirely. The store refuses the removal once the payment
	// settled; member payments stay on the books for retry.
	removed, err := s.store.RemoveGuestParticipant(ctx, regID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "remove guest registration")
	}
	if removed {
		if s.metrics != nil {
			s.metrics.GuestsCleanedUp.Inc()
		}
		s.observeWebhook("guest_removed")
		s.logger.Info("guest registration released", "registration_id", regID, "transaction_status", n.TransactionStatus)
		return nil
	}

	applied, err := s.store.ClosePayment(ctx, regID, status)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "close payment")
	}
	if !applied {
		// Terminal already: a settlement that arrived first wins, a
		// repeated close is a no-op.
		s.observeWebhook("close_noop")
		return nil
	}

	s.observeWebhook("closed")
	reg, err := s.store.GetRegistration(ctx, regID)
	if err == nil && s.events != nil {
		s.events.Emit(ctx, events.Event{
			Type:           events.TypePaymentClosed,
			AgendaID:       reg.AgendaID.String(),
			RegistrationID: regID.String(),
			Role:           string(reg.Role),
			Status:         string(status),
			At:             s.now(),
		})
	}
	s.logger.Info("payment closed", "registration_id", regID, "status", status)
	return nil
}

func (s *Service) observeWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookProcessed.WithLabelValues(outcome).Inc()
	}
}

func closedStatus(transactionStatus string) agenda.PaymentStatus {
	switch transactionStatus {
	case "cancel":
		return agenda.StatusCanceled
	case "expire":
		return agenda.StatusExpired
	default:
		return agenda.StatusFailed
	}
}

func registrationIDFromOrder(orderID string) (uuid.UUID, bool) {
	if len(orderID) < orderIDLength {
		return uuid.Nil, false
	}
	prefix := orderID[:orderIDLength]
	if len(orderID) > orderIDLength && !strings.HasPrefix(orderID[orderIDLength:], "-") {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(prefix)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
