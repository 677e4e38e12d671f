// Command quill-admin runs operator tasks against the payment ledger.
//
// Usage:
//
//	quill-admin register-coupon --employee emp_7 --coupon BARISTA10
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dukerupert/quill/internal"
	"github.com/dukerupert/quill/internal/bootstrap"
)

var errUsage = errors.New("usage: quill-admin register-coupon --employee <id> --coupon <code>")

func run(args []string, stderr io.Writer) error {
	if len(args) == 0 || args[0] != "register-coupon" {
		return errUsage
	}

	fs := pflag.NewFlagSet("register-coupon", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	employeeID := fs.String("employee", "", "employee id credited by the coupon")
	couponCode := fs.String("coupon", "", "referral coupon code")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(stderr, cfg.Env, cfg.LogLevel)

	st, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return bootstrap.RegisterEmployeeCoupon(ctx, st, bootstrap.CouponConfig{
		EmployeeID: *employeeID,
		CouponCode: *couponCode,
	}, logger)
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		log.Fatal(err)
	}
}
