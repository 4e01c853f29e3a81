package shipping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatRateQuoter(t *testing.T) {
	tests := []struct {
		name      string
		threshold int64
		fee       int64
		amount    int64
		want      int64
	}{
		{"below threshold pays flat fee", 200000, 9900, 180000, 9900},
		{"at threshold ships free", 200000, 9900, 200000, 0},
		{"above threshold ships free", 200000, 9900, 350000, 0},
		{"one cent below threshold pays", 200000, 9900, 199999, 9900},
		{"zero amount pays flat fee", 200000, 9900, 0, 9900},
		{"zero threshold means always free", 0, 9900, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewFlatRateQuoter(tt.threshold, tt.fee)
			got, err := q.QuoteCents(context.Background(), tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
