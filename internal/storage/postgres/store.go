// Package postgres provides the Postgres-backed crawl store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists jobs, categories, products, images, and queue items.
//
// Expected tables: crawl_jobs (counters as integer columns, error_log and
// config as jsonb), categories keyed by url, products keyed by identity
// with a jsonb fields column, product_images keyed by (product_id, url),
// and queue_items keyed by (job_id, url).
type Store struct {
	pool dbConn
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithConn constructs a Store from an existing connection (primarily for
// testing).
func NewWithConn(conn dbConn) (*Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	return &Store{pool: conn}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job crawler.CrawlJob) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}
	query := `
INSERT INTO crawl_jobs (id, homepage_url, status, started_at, config, error_log)
VALUES ($1, $2, $3, $4, $5, '[]'::jsonb)`
	if _, err := s.pool.Exec(ctx, query, job.ID, job.HomepageURL, job.Status, job.Started, configJSON); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads one job row with its counters and error log.
func (s *Store) GetJob(ctx context.Context, jobID string) (crawler.CrawlJob, error) {
	query := `
SELECT id, homepage_url, status, started_at, finished_at,
       categories, products, images, barcodes, errors,
       error_log, config
FROM crawl_jobs WHERE id = $1`

	var (
		job        crawler.CrawlJob
		errorLog   []byte
		configJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.HomepageURL,
		&job.Status,
		&job.Started,
		&job.Finished,
		&job.Counters.Categories,
		&job.Counters.Products,
		&job.Counters.Images,
		&job.Counters.Barcodes,
		&job.Counters.Errors,
		&errorLog,
		&configJSON,
	)
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("select job %s: %w", jobID, err)
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &job.Errors); err != nil {
			return crawler.CrawlJob{}, fmt.Errorf("decode error log: %w", err)
		}
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &job.Config); err != nil {
			return crawler.CrawlJob{}, fmt.Errorf("decode job config: %w", err)
		}
	}
	return job, nil
}

// UpdateJobStatus sets the status, stamping finished_at on terminal states.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status crawler.JobStatus) error {
	query := `
UPDATE crawl_jobs
SET status = $2,
    finished_at = CASE WHEN $3 THEN NOW() ELSE finished_at END
WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, jobID, status, status.Terminal()); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// counterColumns maps counters to their column names; indexing through the
// map keeps user input out of the SQL text.
var counterColumns = map[crawler.Counter]string{
	crawler.CounterCategories: "categories",
	crawler.CounterProducts:   "products",
	crawler.CounterImages:     "images",
	crawler.CounterBarcodes:   "barcodes",
	crawler.CounterErrors:     "errors",
}

// IncrementJobCounter atomically bumps one counter column.
func (s *Store) IncrementJobCounter(ctx context.Context, jobID string, counter crawler.Counter, delta int) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown counter %q", counter)
	}
	query := fmt.Sprintf("UPDATE crawl_jobs SET %s = %s + $2 WHERE id = $1", column, column)
	if _, err := s.pool.Exec(ctx, query, jobID, delta); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// AppendJobError appends an entry to the bounded jsonb error log, evicting
// the oldest entry once the cap is reached.
func (s *Store) AppendJobError(ctx context.Context, jobID string, entry crawler.ErrorEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal error entry: %w", err)
	}
	query := `
UPDATE crawl_jobs
SET error_log = (
    CASE WHEN jsonb_array_length(error_log) >= $3
         THEN error_log - 0
         ELSE error_log
    END
) || $2::jsonb
WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, jobID, entryJSON, crawler.MaxErrorLogEntries); err != nil {
		return fmt.Errorf("append job error: %w", err)
	}
	return nil
}

// SaveCategory upserts a category row keyed by URL.
func (s *Store) SaveCategory(ctx context.Context, category crawler.Category) error {
	query := `
INSERT INTO categories (url, name, parent_url, depth, source, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (url) DO UPDATE
SET name = EXCLUDED.name, status = EXCLUDED.status`
	args := []any{category.URL, category.Name, category.ParentURL, category.Depth, category.Source, category.Status}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save category %s: %w", category.URL, err)
	}
	return nil
}

// UpsertProduct writes a product row keyed by identity. Scalar columns take
// the new values; the jsonb fields column keeps previously seen keys
// (first-seen-wins), since jsonb concatenation lets the right operand win.
func (s *Store) UpsertProduct(ctx context.Context, product crawler.ProductRecord) error {
	fieldsJSON, err := json.Marshal(product.Fields)
	if err != nil {
		return fmt.Errorf("marshal product fields: %w", err)
	}
	query := `
INSERT INTO products (
    identity, url, name, brand, category_path, variant,
    price, currency, description, ingredients, nutrition,
    manufacturer, origin, availability, ocr_text, fields, site, scraped_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (identity) DO UPDATE SET
    url = EXCLUDED.url,
    name = EXCLUDED.name,
    brand = EXCLUDED.brand,
    category_path = EXCLUDED.category_path,
    variant = EXCLUDED.variant,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency,
    description = EXCLUDED.description,
    ingredients = EXCLUDED.ingredients,
    nutrition = EXCLUDED.nutrition,
    manufacturer = EXCLUDED.manufacturer,
    origin = EXCLUDED.origin,
    availability = EXCLUDED.availability,
    ocr_text = EXCLUDED.ocr_text,
    fields = EXCLUDED.fields || products.fields,
    site = EXCLUDED.site,
    scraped_at = EXCLUDED.scraped_at`
	args := []any{
		product.Identity,
		product.URL,
		product.Name,
		product.Brand,
		product.CategoryPath,
		product.Variant,
		product.Price,
		product.Currency,
		product.Description,
		product.Ingredients,
		product.Nutrition,
		product.Manufacturer,
		product.Origin,
		product.Availability,
		product.OCRText,
		fieldsJSON,
		product.Site,
		product.ScrapedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert product %s: %w", product.Identity, err)
	}
	return nil
}

// GetProduct loads one product row by identity.
func (s *Store) GetProduct(ctx context.Context, identity string) (crawler.ProductRecord, error) {
	query := `
SELECT identity, url, name, brand, category_path, variant,
       price, currency, description, ingredients, nutrition,
       manufacturer, origin, availability, ocr_text, fields, site, scraped_at
FROM products WHERE identity = $1`

	var (
		product    crawler.ProductRecord
		fieldsJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, identity).Scan(
		&product.Identity,
		&product.URL,
		&product.Name,
		&product.Brand,
		&product.CategoryPath,
		&product.Variant,
		&product.Price,
		&product.Currency,
		&product.Description,
		&product.Ingredients,
		&product.Nutrition,
		&product.Manufacturer,
		&product.Origin,
		&product.Availability,
		&product.OCRText,
		&fieldsJSON,
		&product.Site,
		&product.ScrapedAt,
	)
	if err != nil {
		return crawler.ProductRecord{}, fmt.Errorf("select product %s: %w", identity, err)
	}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &product.Fields); err != nil {
			return crawler.ProductRecord{}, fmt.Errorf("decode product fields: %w", err)
		}
	}
	return product, nil
}

// SaveImage records one (product, url) image row; replays are no-ops.
func (s *Store) SaveImage(ctx context.Context, img crawler.ImageRecord) error {
	query := `
INSERT INTO product_images (
    product_id, url, stored_path, tag,
    barcode_value, barcode_format, barcode_confidence,
    ocr_text, ocr_confidence
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (product_id, url) DO NOTHING`
	args := []any{
		img.ProductID,
		img.URL,
		img.StoredPath,
		img.Tag,
		img.BarcodeValue,
		img.BarcodeFormat,
		img.BarcodeConfidence,
		img.OCRText,
		img.OCRConfidence,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save image %s: %w", img.URL, err)
	}
	return nil
}

// HasImage reports whether the (product, url) pair was already recorded.
func (s *Store) HasImage(ctx context.Context, productID, url string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM product_images WHERE product_id = $1 AND url = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, productID, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("check image %s: %w", url, err)
	}
	return exists, nil
}

// EnqueueRetry records a failed URL for later replay, capping the retry
// counter.
func (s *Store) EnqueueRetry(ctx context.Context, item crawler.QueueItem) error {
	query := `
INSERT INTO queue_items (job_id, url, type, status, retry_count, last_error)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (job_id, url) DO UPDATE
SET retry_count = LEAST(queue_items.retry_count + 1, $6),
    status = EXCLUDED.status,
    last_error = EXCLUDED.last_error`
	args := []any{item.JobID, item.URL, item.Type, item.Status, item.LastError, crawler.MaxQueueRetries}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("enqueue retry %s: %w", item.URL, err)
	}
	return nil
}
