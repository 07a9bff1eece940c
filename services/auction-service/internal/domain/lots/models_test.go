package lots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLot_ClosedAt(t *testing.T) {
	end := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	lot := &Lot{BiddingEndDate: end}

	assert.False(t, lot.ClosedAt(end.Add(-time.Second)))
	assert.False(t, lot.ClosedAt(end), "the end instant is still open")
	assert.True(t, lot.ClosedAt(end.Add(time.Nanosecond)))
}
