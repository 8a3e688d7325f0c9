package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"khaidee/backend/internal/domain"
	"khaidee/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id         text PRIMARY KEY,
			code       text NOT NULL UNIQUE,
			name       text NOT NULL,
			price      double precision NOT NULL,
			cost_price double precision NOT NULL,
			stock      integer NOT NULL,
			position   integer NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id           text PRIMARY KEY,
			total        double precision NOT NULL,
			total_cost   double precision NOT NULL,
			total_profit double precision NOT NULL,
			created_at   timestamptz NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			sale_id      text NOT NULL REFERENCES sales(id),
			line_no      integer NOT NULL,
			product_id   text NOT NULL,
			product_code text NOT NULL,
			name         text NOT NULL,
			price        double precision NOT NULL,
			cost_price   double precision NOT NULL,
			quantity     integer NOT NULL,
			PRIMARY KEY (sale_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username   text PRIMARY KEY,
			password   text NOT NULL,
			role       text NOT NULL,
			active     boolean NOT NULL DEFAULT true,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, price, cost_price, stock
		FROM products
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.CostPrice, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceProductsTx(ctx, tx, products); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total, total_cost, total_profit, created_at
		FROM sales
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	index := make(map[string]int)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.Total, &sale.TotalCost, &sale.TotalProfit, &sale.Date); err != nil {
			return nil, err
		}
		sale.Date = sale.Date.UTC()
		sale.Items = []domain.CartItem{}
		index[sale.ID] = len(sales)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_code, name, price, cost_price, quantity
		FROM sale_items
		ORDER BY sale_id, line_no
	`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var saleID string
		var item domain.CartItem
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.ProductCode, &item.Name, &item.Price, &item.CostPrice, &item.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[saleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, products []domain.Product) error {
	if sale.ID == "" || len(sale.Items) == 0 {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, total, total_cost, total_profit, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sale.ID, sale.Total, sale.TotalCost, sale.TotalProfit, sale.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}

	for i, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, product_code, name, price, cost_price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, sale.ID, i+1, item.ProductID, item.ProductCode, item.Name, item.Price, item.CostPrice, item.Quantity)
		if err != nil {
			return err
		}
	}

	if err := replaceProductsTx(ctx, tx, products); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// replaceProductsTx swaps in the whole catalog. A single register owns the
// catalog, so wholesale replacement inside one transaction is safe and keeps
// the ordering column consistent.
func replaceProductsTx(ctx context.Context, tx *sql.Tx, products []domain.Product) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return err
	}
	for i, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, code, name, price, cost_price, stock, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, p.ID, p.Code, p.Name, p.Price, p.CostPrice, p.Stock, i)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateCode
			}
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
