package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/studioledger/internal/booking/domain"
	campaigndomain "github.com/smallbiznis/studioledger/internal/campaign/domain"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns, parents first.
func Models() []any {
	return []any{
		&studiodomain.Studio{},
		&studiodomain.Client{},
		&bookingdomain.Booking{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&paymentdomain.Payment{},
		&paymentdomain.WebhookEvent{},
		&gatewayconfigdomain.GatewayConfig{},
		&auditdomain.AuditLog{},
		&campaigndomain.Campaign{},
	}
}

// Migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations; other dialects fall back to AutoMigrate.
func Migrate(conn *gorm.DB, autoMigrate bool) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if strings.EqualFold(conn.Dialector.Name(), "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if !autoMigrate {
		return nil
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
