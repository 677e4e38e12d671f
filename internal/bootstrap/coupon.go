package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CouponRegistrar assigns referral coupons to employees.
type CouponRegistrar interface {
	RegisterCoupon(ctx context.Context, employeeID, couponCode string) error
}

// CouponConfig names an employee and the coupon code that credits them.
type CouponConfig struct {
	EmployeeID string `validate:"required,max=128"`
	CouponCode string `validate:"required,max=64,printascii"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the coupon configuration is usable.
func (c *CouponConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid coupon configuration: %w", err)
	}
	return nil
}

// RegisterEmployeeCoupon registers an employee for commission and assigns
// their referral coupon. Running it again with the same values is a no-op;
// a new code replaces the employee's previous one.
//
// Returns an ECONFLICT domain error when the code belongs to another employee.
func RegisterEmployeeCoupon(ctx context.Context, store CouponRegistrar, cfg CouponConfig, logger *slog.Logger) error {
	cfg.EmployeeID = strings.TrimSpace(cfg.EmployeeID)
	cfg.CouponCode = strings.TrimSpace(cfg.CouponCode)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := store.RegisterCoupon(ctx, cfg.EmployeeID, cfg.CouponCode); err != nil {
		return fmt.Errorf("failed to register coupon: %w", err)
	}

	logger.Info("bootstrap: referral coupon registered",
		"employee_id", cfg.EmployeeID,
		"coupon_code", cfg.CouponCode,
	)
	return nil
}
