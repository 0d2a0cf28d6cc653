// Package pg is the Postgres persistence layer. It backs every store
// interface the dispatch service and the authorization gate consume, and it
// is where legacy storage shapes get reconciled into canonical ones.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fleetgate/fleetgate/internal/dispatch"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var (
	_ dispatch.OrganizationStore = organizations{}
	_ dispatch.DestinationStore  = destinations{}
	_ dispatch.VehicleStore      = vehicles{}
	_ dispatch.RideStore         = rides{}
	_ dispatch.RideRequestStore  = rideRequests{}
	_ dispatch.ProfileStore      = profiles{}
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle (tests use this with sqlmock).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapWriteErr translates driver-level constraint failures into the store
// sentinels the service layer classifies on.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.ErrNotFound
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return dispatch.ErrConflict
		case pgErrForeignKeyViolation:
			return dispatch.ErrInvalidRef
		}
	}
	return err
}

// requireAffected turns a zero-row mutation into not-found. Scoped updates
// rely on this: a wrong owner predicate and a missing row look identical.
func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return mapWriteErr(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}
