package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/logger"
)

const (
	defaultQueryTimeout = 5 * time.Second
	// purchaseTolerance is the max height/weight distance for a comparable buyer.
	purchaseTolerance = 10
)

const (
	queryAttributeKeys = `SELECT DISTINCT attribute_key FROM product_attributes`

	queryProductAttribute = `SELECT attribute_value FROM product_attributes WHERE product_id = ? AND attribute_key = ?`

	queryAttributeAcrossProducts = `SELECT product_id, attribute_value FROM product_attributes WHERE attribute_key = ?`

	queryPurchaseSizes = `SELECT size_code FROM product_purchases WHERE product_id = ? AND ABS(height - ?) <= ? AND ABS(weight - ?) <= ? AND return_item = 0 AND status = 'delivered'`

	querySizeTable = `SELECT size_code, height_range, weight_range, length, sleeve_length, bust, waist, hip, bottom_hem FROM product_sizes WHERE product_id = ? AND stock != 0`

	queryOrderDate = `SELECT purchase_date FROM product_purchases WHERE id = ?`
)

// DBConfig describes how to reach the shop database.
type DBConfig struct {
	Host     string
	Database string
	User     string
	Password string
}

// DSN renders a go-sql-driver/mysql data source name.
func (c DBConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Host
	mc.DBName = c.Database
	mc.User = c.User
	mc.Passwd = c.Password
	mc.ParseTime = true
	mc.Loc = time.Local
	return mc.FormatDSN()
}

// OpenMySQL opens and pings the shop database.
func OpenMySQL(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("repository: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping mysql: %w", err)
	}
	return db, nil
}

// Catalog runs the read-only shop queries. Every method degrades to an empty
// result on backend failure and logs the cause; callers must read empty as
// "no data".
type Catalog struct {
	db      *sql.DB
	log     *logger.Logger
	timeout time.Duration
}

// NewCatalog creates a Catalog. A non-positive timeout selects the default.
func NewCatalog(db *sql.DB, log *logger.Logger, timeout time.Duration) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Catalog{db: db, log: log, timeout: timeout}, nil
}

// AttributeKeys lists every distinct attribute key in the catalog.
func (c *Catalog) AttributeKeys(ctx context.Context) []string {
	keys, err := queryStrings(ctx, c, queryAttributeKeys)
	if err != nil {
		c.log.Error("catalog query failed", "op", "AttributeKeys", "err", err)
		return nil
	}
	return keys
}

// ProductAttribute returns the values of one attribute for one product.
func (c *Catalog) ProductAttribute(ctx context.Context, productID int64, key string) []string {
	values, err := queryStrings(ctx, c, queryProductAttribute, productID, key)
	if err != nil {
		c.log.Error("catalog query failed", "op", "ProductAttribute", "product_id", productID, "key", key, "err", err)
		return nil
	}
	return values
}

// AttributeAcrossProducts returns (product_id, value) pairs for one key.
func (c *Catalog) AttributeAcrossProducts(ctx context.Context, key string) []domain.AttributeValue {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, queryAttributeAcrossProducts, key)
	if err != nil {
		c.log.Error("catalog query failed", "op", "AttributeAcrossProducts", "key", key, "err", err)
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AttributeValue
	for rows.Next() {
		var v domain.AttributeValue
		if err := rows.Scan(&v.ProductID, &v.Value); err != nil {
			c.log.Error("catalog scan failed", "op", "AttributeAcrossProducts", "err", err)
			return nil
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		c.log.Error("catalog rows failed", "op", "AttributeAcrossProducts", "err", err)
		return nil
	}
	return out
}

// PurchaseSizes returns size codes bought by delivered, non-returned buyers
// whose height and weight are each within 10 units of the query.
func (c *Catalog) PurchaseSizes(ctx context.Context, productID int64, height, weight int) []string {
	sizes, err := queryStrings(ctx, c, queryPurchaseSizes,
		productID, height, purchaseTolerance, weight, purchaseTolerance)
	if err != nil {
		c.log.Error("catalog query failed", "op", "PurchaseSizes", "product_id", productID, "err", err)
		return nil
	}
	return sizes
}

// SizeTable returns the in-stock size rows of a product in table order.
// Rows whose ranges cannot be parsed are skipped.
func (c *Catalog) SizeTable(ctx context.Context, productID int64) []domain.SizeRow {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, querySizeTable, productID)
	if err != nil {
		c.log.Error("catalog query failed", "op", "SizeTable", "product_id", productID, "err", err)
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []domain.SizeRow
	for rows.Next() {
		var (
			row                      domain.SizeRow
			heightRange, weightRange string
			length, sleeve, bust     sql.NullString
			waist, hip, hem          sql.NullString
		)
		if err := rows.Scan(&row.SizeCode, &heightRange, &weightRange,
			&length, &sleeve, &bust, &waist, &hip, &hem); err != nil {
			c.log.Error("catalog scan failed", "op", "SizeTable", "err", err)
			return nil
		}
		if row.HeightMin, row.HeightMax, err = ParseRange(heightRange); err != nil {
			c.log.Warn("skipping size row", "product_id", productID, "size_code", row.SizeCode, "err", err)
			continue
		}
		if row.WeightMin, row.WeightMax, err = ParseRange(weightRange); err != nil {
			c.log.Warn("skipping size row", "product_id", productID, "size_code", row.SizeCode, "err", err)
			continue
		}
		row.Length, row.SleeveLength, row.Bust = length.String, sleeve.String, bust.String
		row.Waist, row.Hip, row.BottomHem = waist.String, hip.String, hem.String
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		c.log.Error("catalog rows failed", "op", "SizeTable", "err", err)
		return nil
	}
	return out
}

// OrderDate returns the purchase timestamp of an order, or nothing when the
// order does not exist.
func (c *Catalog) OrderDate(ctx context.Context, orderID int64) []time.Time {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, queryOrderDate, orderID)
	if err != nil {
		c.log.Error("catalog query failed", "op", "OrderDate", "order_id", orderID, "err", err)
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			c.log.Error("catalog scan failed", "op", "OrderDate", "err", err)
			return nil
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		c.log.Error("catalog rows failed", "op", "OrderDate", "err", err)
		return nil
	}
	return out
}

func queryStrings(ctx context.Context, c *Catalog, query string, args ...any) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRange parses a "min-max" range string such as "170-175".
func ParseRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("range %q: missing separator", s)
	}
	low, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("range %q: %w", s, err)
	}
	high, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("range %q: %w", s, err)
	}
	return low, high, nil
}
