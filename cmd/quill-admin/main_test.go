package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/sqlite"
)

func TestRun_Usage(t *testing.T) {
	assert.ErrorIs(t, run(nil, io.Discard), errUsage)
	assert.ErrorIs(t, run([]string{"drop-everything"}, io.Discard), errUsage)
	assert.Error(t, run([]string{"register-coupon", "--bogus"}, io.Discard))
}

func TestRun_RegisterCoupon(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	dbPath := filepath.Join(dir, "quill.db")
	t.Setenv("ENV", "dev")
	t.Setenv("DATABASE_URL", "sqlite:"+dbPath)

	require.NoError(t, run([]string{"register-coupon", "--employee", "emp_7", "--coupon", "BARISTA10"}, io.Discard))
	assert.Error(t, run([]string{"register-coupon", "--employee", "emp_7"}, io.Discard), "coupon is required")

	ctx := context.Background()
	st, err := sqlite.Open(ctx, dbPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	m, err := st.EmployeeMetrics(ctx, "emp_7")
	require.NoError(t, err)
	assert.Equal(t, domain.EmployeeMetrics{EmployeeID: "emp_7", CouponCode: "BARISTA10"}, m)
}
