package repository

import (
	"github.com/flexprice/billingcore/internal/domain/billingcycle"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/domain/taxrate"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	postgresRepo "github.com/flexprice/billingcore/internal/repository/postgres"
)

func NewTaxRateRepository(db *postgres.DB, logger *logger.Logger) taxrate.Repository {
	return postgresRepo.NewTaxRateRepository(db, logger)
}

func NewTaxExemptionRepository(db *postgres.DB, logger *logger.Logger) taxexemption.Repository {
	return postgresRepo.NewTaxExemptionRepository(db, logger)
}

func NewTaxAppliedRepository(db *postgres.DB, logger *logger.Logger) taxapplied.Repository {
	return postgresRepo.NewTaxAppliedRepository(db, logger)
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewBillingCycleRepository(db *postgres.DB, logger *logger.Logger) billingcycle.Repository {
	return postgresRepo.NewBillingCycleRepository(db, logger)
}
