package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/domain/mock"
)

func TestAttributor_Compute(t *testing.T) {
	a := NewAttributor(DefaultRate)

	tests := []struct {
		name        string
		amountMinor int64
		want        int64
	}{
		{"exact", 29900, 1495},
		{"zero", 0, 0},
		{"half rounds down to even", 10, 0},
		{"half rounds up to even", 30, 2},
		{"half stays even", 50, 2},
		{"below half", 9, 0},
		{"above half", 11, 1},
		{"large amount", 123456789, 6172839},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Compute(tt.amountMinor))
		})
	}
}

func TestNewAttributor_RateFallback(t *testing.T) {
	assert.True(t, NewAttributor(decimal.Zero).Rate().Equal(DefaultRate))
	assert.True(t, NewAttributor(decimal.RequireFromString("0.1")).Rate().Equal(decimal.RequireFromString("0.1")))
}

func TestPoints(t *testing.T) {
	assert.Equal(t, int64(299), Points(domain.Transaction{AmountMinor: 29999, Currency: "usd"}))
	assert.Equal(t, int64(500), Points(domain.Transaction{AmountMinor: 500, Currency: "jpy"}))
}

func TestAttributor_Attribute(t *testing.T) {
	ctx := context.Background()
	tx := domain.Transaction{
		ID:           uuid.New(),
		SubscriberID: "sub_user_1",
		AmountMinor:  29900,
		Currency:     "usd",
	}

	t.Run("creates entry and increments metrics", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		uow := mock.NewMockUnitOfWork(ctrl)

		uow.EXPECT().InsertCommissionEntry(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, entry domain.CommissionEntry) (bool, error) {
				assert.Equal(t, "emp_7", entry.EmployeeID)
				assert.Equal(t, tx.ID, entry.TransactionID)
				assert.Equal(t, int64(1495), entry.CommissionMinor)
				return true, nil
			})
		uow.EXPECT().IncrementEmployeeMetrics(gomock.Any(), domain.EmployeeMetricsDelta{
			EmployeeID:   "emp_7",
			Uses:         1,
			RevenueMinor: 1495,
			Points:       299,
		}).Return(nil)

		result, err := NewAttributor(DefaultRate).Attribute(ctx, uow, tx, "emp_7")
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, int64(1495), result.Entry.CommissionMinor)
	})

	t.Run("existing entry is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		uow := mock.NewMockUnitOfWork(ctrl)

		uow.EXPECT().InsertCommissionEntry(gomock.Any(), gomock.Any()).Return(false, nil)
		uow.EXPECT().IncrementEmployeeMetrics(gomock.Any(), gomock.Any()).Times(0)

		result, err := NewAttributor(DefaultRate).Attribute(ctx, uow, tx, "emp_7")
		require.NoError(t, err)
		assert.False(t, result.Created)
	})

	t.Run("insert failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		uow := mock.NewMockUnitOfWork(ctrl)
		dbErr := errors.New("connection reset")

		uow.EXPECT().InsertCommissionEntry(gomock.Any(), gomock.Any()).Return(false, dbErr)

		_, err := NewAttributor(DefaultRate).Attribute(ctx, uow, tx, "emp_7")
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("metrics for an unregistered employee fail the attribution", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		uow := mock.NewMockUnitOfWork(ctrl)

		uow.EXPECT().InsertCommissionEntry(gomock.Any(), gomock.Any()).Return(true, nil)
		uow.EXPECT().IncrementEmployeeMetrics(gomock.Any(), gomock.Any()).Return(domain.ErrEmployeeNotFound)

		_, err := NewAttributor(DefaultRate).Attribute(ctx, uow, tx, "emp_gone")
		assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
	})

	t.Run("missing employee", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		uow := mock.NewMockUnitOfWork(ctrl)

		_, err := NewAttributor(DefaultRate).Attribute(ctx, uow, tx, "")
		assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
	})
}
