package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
)

// ledger_check scans the billing ledger for broken invariants and exits
// non-zero when any are found, so it can gate deploys and nightly jobs.
func main() {
	var (
		academicYearID string
		asJSON         bool
		timeout        time.Duration
	)

	flag.StringVar(&academicYearID, "academic-year", "", "Limit the scan to one academic year ID")
	flag.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Scan timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	checker := service.NewLedgerCheckService(repository.NewBillingRepository(db), nil, clock.NewSystem(cfg.Billing.Location()), logr)
	report, err := checker.Check(ctx, academicYearID)
	if err != nil {
		log.Fatalf("ledger check failed: %v", err)
	}

	if asJSON {
		err = writeJSON(os.Stdout, report)
	} else {
		err = writeSummary(os.Stdout, report)
	}
	if err != nil {
		log.Fatalf("failed to write report: %v", err)
	}
	if !report.Healthy() {
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, report *models.LedgerCheckReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeSummary(w io.Writer, report *models.LedgerCheckReport) error {
	scope := report.AcademicYearID
	if scope == "" {
		scope = "all academic years"
	}
	if _, err := fmt.Fprintf(w, "Checked %d billings (%s) at %s\n", report.CheckedBillings, scope, report.CheckedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	for _, v := range report.Violations {
		if _, err := fmt.Fprintf(w, "[%s] %s %s: %s\n", v.Rule, v.BillingID, v.BillNumber, v.Detail); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Violations: %d\n", len(report.Violations))
	return err
}
