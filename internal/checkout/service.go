// Package checkout accepts storefront quote requests and order submissions.
// A submission creates a transient pending order; nothing durable exists
// until payment confirmation materializes it.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/common"
	"github.com/threadworks/printshop-api/internal/events"
	"github.com/threadworks/printshop-api/internal/order"
	"github.com/threadworks/printshop-api/internal/quote"
	"github.com/threadworks/printshop-api/internal/selection"
)

// SelectionInput is one garment/color/size/quantity tuple from the client.
type SelectionInput struct {
	GarmentID string `json:"garmentId" validate:"required"`
	Color     string `json:"color" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// ArtworkInput is one uploaded design placement.
type ArtworkInput struct {
	Location  string          `json:"location" validate:"required"`
	FileRef   string          `json:"fileRef" validate:"required"`
	Transform json.RawMessage `json:"transform,omitempty"`
}

// Input is the full checkout submission.
type Input struct {
	CustomerName  string                     `json:"customerName" validate:"required"`
	CustomerEmail string                     `json:"customerEmail" validate:"required,email"`
	Selections    []SelectionInput           `json:"selections" validate:"min=1,dive"`
	PrintConfig   map[string]quote.Placement `json:"printConfig" validate:"required"`
	Artwork       []ArtworkInput             `json:"artwork" validate:"dive"`
	Discount      string                     `json:"discount,omitempty"`
}

// QuoteInput is the preview request: pricing only, nothing persisted.
type QuoteInput struct {
	Selections  []SelectionInput           `json:"selections" validate:"min=1,dive"`
	PrintConfig map[string]quote.Placement `json:"printConfig" validate:"required"`
	Discount    string                     `json:"discount,omitempty"`
}

// Output acknowledges a submission.
type Output struct {
	PendingOrderID string          `json:"pendingOrderId"`
	Quote          quote.Breakdown `json:"quote"`
}

// Service validates submissions, prices them, and records pending orders.
type Service struct {
	Store    order.Store
	Calc     *quote.Calculator
	Events   *events.Bus
	Validate *validator.Validate
	Log      zerolog.Logger
}

// NewService wires a checkout service with a fresh validator.
func NewService(store order.Store, calc *quote.Calculator, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		Store:    store,
		Calc:     calc,
		Events:   bus,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Log:      log,
	}
}

// Quote prices a selection without persisting anything.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (quote.Breakdown, error) {
	if err := s.Validate.Struct(in); err != nil {
		return quote.Breakdown{}, validationError(err)
	}
	discount, err := parseDiscount(in.Discount)
	if err != nil {
		return quote.Breakdown{}, err
	}
	agg := selection.Aggregate(toSelections(in.Selections))
	return s.Calc.CalculateMulti(ctx, toLines(agg), quote.PrintConfig(in.PrintConfig), discount)
}

// Submit validates and prices the order, then records it as pending. The
// returned quote is advisory; the authoritative price is computed again at
// materialization from the same stored inputs.
func (s *Service) Submit(ctx context.Context, in Input) (Output, error) {
	if err := s.Validate.Struct(in); err != nil {
		return Output{}, validationError(err)
	}
	discount, err := parseDiscount(in.Discount)
	if err != nil {
		return Output{}, err
	}
	selections := toSelections(in.Selections)
	agg := selection.Aggregate(selections)
	pc := quote.PrintConfig(in.PrintConfig)
	breakdown, err := s.Calc.CalculateMulti(ctx, toLines(agg), pc, discount)
	if err != nil {
		return Output{}, err
	}

	pending := order.PendingOrder{
		ID:            uuid.New(),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Selections:    selections,
		PrintConfig:   pc,
		Artwork:       toArtwork(in.Artwork),
		Discount:      discount,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Store.InsertPending(ctx, pending); err != nil {
		return Output{}, err
	}

	if s.Events != nil {
		payload := map[string]any{
			"pendingOrderId": pending.ID.String(),
			"customerEmail":  pending.CustomerEmail,
			"total":          breakdown.Total.String(),
		}
		if _, err := s.Events.Emit(ctx, events.TopicOrderSubmitted, pending.ID, payload); err != nil {
			s.Log.Error().Err(err).
				Str("pending_order_id", pending.ID.String()).
				Msg("emit order.submitted")
		}
	}

	return Output{PendingOrderID: pending.ID.String(), Quote: breakdown}, nil
}

func toSelections(in []SelectionInput) []selection.Selection {
	out := make([]selection.Selection, 0, len(in))
	for _, sel := range in {
		out = append(out, selection.Selection{
			GarmentID: sel.GarmentID,
			Color:     sel.Color,
			Size:      sel.Size,
			Quantity:  sel.Quantity,
		})
	}
	return out
}

func toLines(agg selection.Aggregated) []quote.GarmentLine {
	lines := make([]quote.GarmentLine, 0, len(agg.Garments))
	for _, l := range agg.Lines() {
		lines = append(lines, quote.GarmentLine{GarmentID: l.GarmentID, Quantity: l.Quantity})
	}
	return lines
}

func toArtwork(in []ArtworkInput) []artwork.Ref {
	if len(in) == 0 {
		return nil
	}
	out := make([]artwork.Ref, 0, len(in))
	for _, a := range in {
		out = append(out, artwork.Ref{Location: a.Location, FileRef: a.FileRef, Transform: a.Transform})
	}
	return out
}

func parseDiscount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, common.NewAppError("INVALID_DISCOUNT", "discount must be a non-negative amount", http.StatusBadRequest, err)
	}
	return d, nil
}

func validationError(err error) error {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return common.NewAppError("INTERNAL", "validation unavailable", http.StatusInternalServerError, err)
	}
	details := map[string]string{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	appErr := common.NewAppError("VALIDATION", "request failed validation", http.StatusUnprocessableEntity, err)
	appErr.Details = details
	return appErr
}
