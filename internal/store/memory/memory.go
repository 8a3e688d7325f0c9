package memory

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"khaidee/backend/internal/domain"
	"khaidee/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        []domain.Product
	sales           []domain.Sale
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        []domain.Product{},
		sales:           make([]domain.Sale, 0, 64),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	s.products = []domain.Product{
		{ID: "p1", Code: "MPG-01", Name: "หมูปิ้ง", Price: 10, CostPrice: 6, Stock: 100},
		{ID: "p2", Code: "KPG-01", Name: "ไก่ปิ้ง", Price: 10, CostPrice: 6.5, Stock: 80},
		{ID: "p3", Code: "KNW-01", Name: "ข้าวเหนียว", Price: 5, CostPrice: 2.5, Stock: 200},
		{ID: "p4", Code: "NJJ-01", Name: "น้ำจิ้มแจ่ว", Price: 5, CostPrice: 1.5, Stock: 50},
		{ID: "p5", Code: "COKE-01", Name: "โค้ก", Price: 15, CostPrice: 11, Stock: 60},
		{ID: "p6", Code: "WATER-01", Name: "น้ำเปล่า", Price: 10, CostPrice: 5, Stock: 120},
	}
	return s
}

func (s *Store) LoadProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneProducts(s.products), nil
}

func (s *Store) ReplaceProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = cloneProducts(products)
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	return sales, nil
}

func (s *Store) CommitSale(_ context.Context, sale domain.Sale, products []domain.Product) error {
	if sale.ID == "" || len(sale.Items) == 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ledger is newest-first: prepend.
	s.sales = append([]domain.Sale{cloneSale(sale)}, s.sales...)
	s.products = cloneProducts(products)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneProducts(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = make([]domain.CartItem, len(sale.Items))
	copy(out.Items, sale.Items)
	return out
}
