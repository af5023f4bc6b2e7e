package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pagadorhq/pagador/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	// The database may still be coming up when the simulator starts.
	pingBackoff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	err = backoff.Retry(func() error {
		return db.Ping()
	}, pingBackoff)
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}

	err = createPaymentTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GenerateUUIDWithSuffix builds an identifier of the form <module>_<uuid>.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()

	uuidStr := id.String()

	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)

	return idWithSuffix
}

// createPaymentTable creates the PostgreSQL table for payment records
func createPaymentTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			merchant JSONB NOT NULL,
			merchant_id TEXT NOT NULL,
			amount NUMERIC(20, 2) NOT NULL,
			currency TEXT NOT NULL,
			payer JSONB NOT NULL,
			payment_methods JSONB NOT NULL,
			status TEXT NOT NULL,
			response_code TEXT,
			response_message TEXT,
			external_reference TEXT,
			description TEXT,
			notification_url TEXT,
			allow_commerce_pan_token BOOLEAN NOT NULL DEFAULT FALSE,
			from_batch BOOLEAN NOT NULL DEFAULT FALSE,
			is_force BOOLEAN NOT NULL DEFAULT FALSE,
			notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
			notification_sent_at TIMESTAMP,
			processed_at TIMESTAMP,
			paid_at TIMESTAMP,
			accredited_at TIMESTAMP,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_payments_merchant_status ON payments (merchant_id, status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_payments_notification ON payments (notification_sent, status);
	`)
	return err
}
