package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eso_go/internal/app"
	"eso_go/internal/domain"
	"eso_go/internal/infra"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "eso",
		Short:        "Employee stock option valuation on a binomial lattice",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the YAML config")

	root.AddCommand(
		newValueCmd(&configPath),
		newImportCmd(&configPath),
		newBatchCmd(&configPath),
		newServeCmd(&configPath),
	)
	return root
}

// bootstrap initializes the application or logs why it could not
func bootstrap(configPath string, withRegister bool) (*app.Bootstrap, error) {
	b := app.NewBootstrap()
	if err := b.Initialize(configPath, withRegister); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return nil, err
	}
	return b, nil
}

func newValueCmd(configPath *string) *cobra.Command {
	var (
		in     domain.Inputs
		steps  float64
		strict bool
		policy string
	)

	cmd := &cobra.Command{
		Use:   "value",
		Short: "Value a single option from flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap(*configPath, false)
			if err != nil {
				return err
			}

			p, err := domain.ParseExercisePolicy(policy)
			if err != nil {
				return err
			}
			in.Steps = domain.StepsFromFloat(steps)
			in = p.Apply(in)

			var res domain.Valuation
			if strict {
				res, err = b.Service.ValueStrict(cmd.Context(), in)
			} else {
				res, err = b.Service.Value(cmd.Context(), in)
			}
			if err != nil {
				return err
			}

			precision := b.Config.Valuation.ReportPrecision
			value, life := res.Rounded(precision)
			fmt.Fprintf(cmd.OutOrStdout(), "value=%s expected_life=%s method=%s\n",
				value.StringFixed(precision), life.StringFixed(precision), res.Method)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&in.SharePrice, "share-price", 0, "current share price")
	f.Float64Var(&in.StrikePrice, "strike-price", 0, "exercise price")
	f.Float64Var(&in.TimeToMaturity, "maturity", 0, "time to maturity in years")
	f.Float64Var(&in.VestingPeriod, "vesting", 0, "vesting period in years")
	f.Float64Var(&in.RiskFree, "risk-free", 0, "continuously compounded risk-free rate")
	f.Float64Var(&in.Sigma, "sigma", 0, "annualised volatility")
	f.Float64Var(&in.DivRate, "div-rate", 0, "continuous dividend yield")
	f.Float64Var(&in.ExitPreVesting, "exit-pre", 0, "annual exit rate before vesting")
	f.Float64Var(&in.ExitPostVesting, "exit-post", 0, "annual exit rate after vesting")
	f.Float64Var(&in.Multiple, "multiple", 0, "exercise when share price reaches multiple x strike")
	f.Float64Var(&steps, "steps", 0, "lattice steps, truncated toward zero (0 uses the configured default)")
	f.BoolVar(&strict, "strict", false, "validate inputs and fail instead of returning NaN")
	f.StringVar(&policy, "policy", "multiple", "exercise policy: multiple or optimal")
	return cmd
}

func newImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv>",
		Short: "Load grants from a CSV file into the register",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap(*configPath, true)
			if err != nil {
				return err
			}
			defer b.Close()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			grants, err := infra.ReadGrants(file)
			if err != nil {
				return err
			}

			n, err := b.Service.ImportGrants(grants)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d grants\n", n, len(grants))
			return err
		},
	}
}

func newBatchCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Value every grant in the register (or a CSV file) and print a CSV report",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap(*configPath, file == "")
			if err != nil {
				return err
			}
			defer b.Close()

			var results []domain.GrantValuation
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()

				grants, err := infra.ReadGrants(f)
				if err != nil {
					return err
				}
				results = b.Service.ValueBatch(cmd.Context(), grants)
			} else {
				results, err = b.Service.ValueRegister(cmd.Context())
				if err != nil {
					return err
				}
			}

			return infra.WriteReport(cmd.OutOrStdout(), results, b.Config.Valuation.ReportPrecision)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "value grants from this CSV instead of the register")
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket valuation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bootstrap(*configPath, true)
			if err != nil {
				return err
			}
			defer b.Close()

			// Graceful Shutdown Context
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return b.Serve(ctx)
		},
	}
}

