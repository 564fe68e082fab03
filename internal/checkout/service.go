package checkout

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	tracer = otel.Tracer("checkout")
	meter  = otel.Meter("checkout")
)

// Service chains validation and commit for a single checkout.
type Service struct {
	validator *Validator
	sequencer *Sequencer

	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

func NewService(validator *Validator, sequencer *Sequencer) *Service {
	placed, _ := meter.Int64Counter("checkout.orders.placed",
		metric.WithDescription("Orders committed"))
	rejected, _ := meter.Int64Counter("checkout.orders.rejected",
		metric.WithDescription("Checkouts that ended without a committed order"))

	return &Service{
		validator: validator,
		sequencer: sequencer,
		placed:    placed,
		rejected:  rejected,
	}
}

func (s *Service) PlaceOrder(ctx context.Context, userID string, cart domain.Cart) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "checkout.place_order")
	defer span.End()

	validated, err := s.validator.Validate(ctx, cart)
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	receipt, err := s.sequencer.Commit(ctx, userID, validated)
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	if s.placed != nil {
		s.placed.Add(ctx, 1)
	}
	return receipt, nil
}

func (s *Service) reject(ctx context.Context, err error) {
	if s.rejected == nil {
		return
	}
	reason := "internal"
	switch {
	case errors.Is(err, ErrValidation):
		reason = "validation"
	case errors.Is(err, ErrPersistence):
		reason = "persistence"
	}
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
