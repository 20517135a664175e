package orders

import (
	"context"
	"fmt"
	"time"
)

const orderNumberHourLayout = "2006010215"

type sequenceSource interface {
	NextSequence(ctx context.Context) (int64, error)
}

// FormatOrderNumber renders ORD-<yyyyMMddHH>-<seq> with the sequence padded to
// six digits. Sequences above 999999 widen the suffix instead of wrapping.
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", at.UTC().Format(orderNumberHourLayout), seq)
}

// NumberGenerator mints order numbers from the database sequence.
type NumberGenerator struct {
	now func() time.Time
}

// NewNumberGenerator builds a generator. A nil clock uses time.Now.
func NewNumberGenerator(clock func() time.Time) *NumberGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &NumberGenerator{now: clock}
}

// Next reserves a sequence value from src and formats it.
func (g *NumberGenerator) Next(ctx context.Context, src sequenceSource) (string, error) {
	seq, err := src.NextSequence(ctx)
	if err != nil {
		return "", fmt.Errorf("next order sequence: %w", err)
	}
	return FormatOrderNumber(g.now(), seq), nil
}
