package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

const (
	defaultMaxOpenConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// row is one stored line of either collection
type row struct {
	Position int    `db:"position"`
	Product  string `db:"product"`
	Domain   string `db:"domain"`
	URL      string `db:"url"`
}

// PostgresStore keeps each collection in a table named after it.
// Columns are generic (product, domain, url) and mapped to the collection header on the way out.
type PostgresStore struct {
	cfg config.RemoteConfig
	log *logrus.Entry

	mu sync.Mutex
	db *sqlx.DB
}

// NewPostgresStore creates a PostgresStore. The connection is opened on first use
func NewPostgresStore(cfg config.RemoteConfig, log *logrus.Entry) *PostgresStore {
	return &PostgresStore{cfg: cfg, log: log.WithField("remote", "postgres")}
}

// NewPostgresStoreWithDB wraps an open connection, for tests and callers owning the pool
func NewPostgresStoreWithDB(db *sqlx.DB, cfg config.RemoteConfig, log *logrus.Entry) *PostgresStore {
	return &PostgresStore{cfg: cfg, log: log.WithField("remote", "postgres"), db: db}
}

// Name implements Store
func (p *PostgresStore) Name() string { return "postgres" }

func (p *PostgresStore) conn(ctx context.Context) (*sqlx.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", p.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to database: %w", utils.ErrRemoteStore, err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	p.db = db
	return db, nil
}

// table returns the quoted table name of c
func table(c models.Collection) string {
	return `"` + string(c) + `"`
}

// EnsureSchema creates the collection tables when missing
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	db, err := p.conn(ctx)
	if err != nil {
		return err
	}
	for _, c := range models.AllCollections() {
		q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			position INTEGER NOT NULL,
			product  TEXT    NOT NULL,
			domain   TEXT    NOT NULL,
			url      TEXT    NOT NULL DEFAULT ''
		)`, table(c))
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: create table %s: %w", utils.ErrRemoteStore, c, err)
		}
	}
	return nil
}

// Load implements Store
func (p *PostgresStore) Load(ctx context.Context, c models.Collection) (*models.Sheet, error) {
	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout(p.cfg))
	defer cancel()

	var rows []row
	q := fmt.Sprintf(`SELECT position, product, domain, url FROM %s ORDER BY position`, table(c))
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("%w: read '%s': %w", utils.ErrRemoteStore, c, err)
	}
	sheet := &models.Sheet{Header: c.Columns(), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []string{r.Product, r.Domain, r.URL})
	}
	p.log.WithFields(logrus.Fields{"collection": c, "rows": len(rows)}).Info("Loaded remote collection")
	return sheet, nil
}

// Replace implements Store: DELETE then INSERT in one transaction
func (p *PostgresStore) Replace(ctx context.Context, c models.Collection, sheet *models.Sheet) error {
	db, err := p.conn(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout(p.cfg))
	defer cancel()

	out := normalize(c, sheet)
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", utils.ErrRemoteStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table(c))); err != nil {
		return fmt.Errorf("%w: clear '%s': %w", utils.ErrRemoteStore, c, err)
	}
	if len(out.Rows) > 0 {
		batch := make([]row, 0, len(out.Rows))
		for i, r := range out.Rows {
			batch = append(batch, row{Position: i, Product: r[0], Domain: r[1], URL: r[2]})
		}
		q := fmt.Sprintf(`INSERT INTO %s (position, product, domain, url) VALUES (:position, :product, :domain, :url)`, table(c))
		if _, err := tx.NamedExecContext(ctx, q, batch); err != nil {
			return fmt.Errorf("%w: write '%s': %w", utils.ErrRemoteStore, c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit '%s': %w", utils.ErrRemoteStore, c, err)
	}
	p.log.WithFields(logrus.Fields{"collection": c, "rows": len(out.Rows)}).Info("Rewrote remote collection")
	return nil
}

// Close releases the connection pool
func (p *PostgresStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
