package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vendhub/internal/types"
)

// CustomerRepository provides the customer reads and the single
// capacity-guarded write the quota core needs. Full customer management
// (verification, token vends, meter updates) lives in a separate service.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new CustomerRepository backed by the
// given database connection (pool or transaction).
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// CountCustomers returns the number of customers enrolled under a vendor.
func (r *CustomerRepository) CountCustomers(ctx context.Context, vendorID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM customers WHERE vendor_id = $1`,
		vendorID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count customers", err)
	}
	return count, nil
}

// GetByID retrieves a customer by its ID.
func (r *CustomerRepository) GetByID(ctx context.Context, customerID string) (*types.Customer, error) {
	var c types.Customer
	err := r.db.QueryRow(ctx,
		`SELECT id, vendor_id, meter_number, disco, verified, created_at
		 FROM customers WHERE id = $1`,
		customerID,
	).Scan(&c.ID, &c.VendorID, &c.MeterNumber, &c.Disco, &c.Verified, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve customer", err)
	}
	return &c, nil
}

// InsertWithinCapacity enrolls a customer only if the vendor still has a
// free slot. The statement first claims a slot with a conditional update on
// the vendor's customer_count, then inserts the customer row from the
// claim. Both run in one statement, so a failed insert (a duplicate meter
// number, say) rolls the claim back with it.
//
// The conditional update is what makes racing enrollments safe under read
// committed: a second statement blocks on the vendor row and re-evaluates
// customer_count < limit against the committed value, so at capacity K
// exactly K enrollments succeed regardless of interleaving. A plain
// count-subquery guard would not be, because each racer's count snapshot
// excludes the other's uncommitted row.
//
// Returns false (no error) when no slot was free, so the caller can re-read
// usage and produce a proper quota denial.
func (r *CustomerRepository) InsertWithinCapacity(ctx context.Context, customer *types.Customer, limit int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`WITH claimed AS (
			UPDATE vendors SET customer_count = customer_count + 1
			WHERE id = $2 AND customer_count < $6
			RETURNING id
		 )
		 INSERT INTO customers (id, vendor_id, meter_number, disco, verified, created_at)
		 SELECT $1, claimed.id, $3, $4, $5, NOW()
		 FROM claimed`,
		customer.ID,
		customer.VendorID,
		customer.MeterNumber,
		customer.Disco,
		customer.Verified,
		limit,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, types.NewAppErrorWithDetails(
				types.ErrCodeConflictMeterNumber,
				"a customer with this meter number already exists",
				err,
				map[string]any{"meter_number": customer.MeterNumber},
			)
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to enroll customer", err)
	}
	return tag.RowsAffected() == 1, nil
}
