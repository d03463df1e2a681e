package main

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/service"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var taxReportCmd = &cobra.Command{
	Use:   "tax-report",
	Short: "Export a tax report for a period as CSV",
	Example: `  # March summary for the default tenant
  billing tax-report --from 2024-03-01 --to 2024-03-31

  # Detailed California report
  billing tax-report --from 2024-03-01 --to 2024-03-31 --type detailed --country US --state CA`,
	RunE: runTaxReport,
}

func init() {
	rootCmd.AddCommand(taxReportCmd)

	taxReportCmd.Flags().String("from", "", "Period start (YYYY-MM-DD, inclusive)")
	taxReportCmd.Flags().String("to", "", "Period end (YYYY-MM-DD, inclusive through end of day)")
	taxReportCmd.Flags().String("type", string(types.TaxReportTypeSummary), "Report type: summary, detailed, exemptions or audit")
	taxReportCmd.Flags().String("tenant", types.DefaultTenantID, "Tenant to report on")
	taxReportCmd.Flags().String("country", "", "Restrict to a country (ISO 3166-1 alpha-2)")
	taxReportCmd.Flags().String("state", "", "Restrict to a state within the country")
	_ = taxReportCmd.MarkFlagRequired("from")
	_ = taxReportCmd.MarkFlagRequired("to")
}

func runTaxReport(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	reportType, _ := cmd.Flags().GetString("type")
	tenantID, _ := cmd.Flags().GetString("tenant")
	country, _ := cmd.Flags().GetString("country")
	state, _ := cmd.Flags().GetString("state")

	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return err
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return err
	}

	req := dto.GenerateTaxReportRequest{
		PeriodStart: start,
		PeriodEnd:   end.Add(24*time.Hour - time.Nanosecond),
		Country:     country,
		ReportType:  types.TaxReportType(reportType),
	}
	if state != "" {
		req.State = lo.ToPtr(state)
	}

	var reports service.TaxReportService
	app := fx.New(
		coreModule,
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
		fx.Populate(&reports),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	out, err := reports.ExportTaxReport(types.SetTenantID(ctx, tenantID), req)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
