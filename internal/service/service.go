package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"khaidee/backend/internal/cart"
	"khaidee/backend/internal/domain"
	"khaidee/backend/internal/report"
	"khaidee/backend/internal/scanner"
	"khaidee/backend/internal/store"
	"khaidee/backend/internal/xid"
)

const (
	ViewDashboard = "dashboard"
	ViewSell      = "sell"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the single register: it owns the open cart, the scan decoder
// and the active view, and serializes every catalog or ledger mutation
// behind one mutex.
type Service struct {
	mu      sync.Mutex
	repo    store.Repository
	reports *report.Engine
	decoder *scanner.Decoder

	cart []domain.CartItem
	view string

	defaultLowStock int
}

func New(repo store.Repository, reports *report.Engine, decoder *scanner.Decoder, defaultLowStock int) *Service {
	if decoder == nil {
		decoder = scanner.NewDecoder(scanner.DefaultIdleWindow, nil)
	}
	if defaultLowStock < 1 {
		defaultLowStock = 5
	}

	return &Service{
		repo:            repo,
		reports:         reports,
		decoder:         decoder,
		view:            ViewDashboard,
		defaultLowStock: defaultLowStock,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.LoadProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Price <= 0 || req.CostPrice < 0 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if codeTaken(products, req.Code, "") {
		return domain.Product{}, store.ErrDuplicateCode
	}

	product := domain.Product{
		ID:        uuid.NewString(),
		Code:      req.Code,
		Name:      req.Name,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Stock:     req.Stock,
	}
	products = append(products, product)

	if err := s.repo.ReplaceProducts(ctx, products); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	idx := findProduct(products, productID)
	if idx < 0 {
		return domain.Product{}, store.ErrNotFound
	}

	updated := products[idx]
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if code == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		if codeTaken(products, code, updated.ID) {
			return domain.Product{}, store.ErrDuplicateCode
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Price = *req.Price
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Stock = *req.Stock
	}

	// Cart lines are snapshots: edits here never touch an open cart.
	products[idx] = updated
	if err := s.repo.ReplaceProducts(ctx, products); err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return err
	}
	idx := findProduct(products, productID)
	if idx < 0 {
		return store.ErrNotFound
	}

	// Cart lines for the deleted product stay in the cart; checkout skips
	// them when deducting stock.
	products = slices.Delete(products, idx, idx+1)
	return s.repo.ReplaceProducts(ctx, products)
}

func (s *Service) AddStock(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	if quantity < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	idx := findProduct(products, productID)
	if idx < 0 {
		return domain.Product{}, store.ErrNotFound
	}

	products[idx].Stock += quantity
	if err := s.repo.ReplaceProducts(ctx, products); err != nil {
		return domain.Product{}, err
	}
	return products[idx], nil
}

func (s *Service) Cart(_ context.Context) domain.CartResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartResponseLocked()
}

func (s *Service) AddToCart(ctx context.Context, productID string) (domain.CartResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.CartResponse{}, err
	}
	idx := findProduct(products, productID)
	if idx < 0 {
		return domain.CartResponse{}, store.ErrNotFound
	}

	s.cart = cart.Add(s.cart, products[idx])
	return s.cartResponseLocked(), nil
}

func (s *Service) SetItemQuantity(ctx context.Context, productID string, quantity int) (domain.CartResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.CartResponse{}, err
	}
	idx := findProduct(products, productID)
	if idx < 0 {
		// Product vanished from the catalog: leave the line alone.
		return s.cartResponseLocked(), nil
	}

	s.cart = cart.SetQuantity(s.cart, productID, products[idx].Stock, quantity)
	return s.cartResponseLocked(), nil
}

// FinalizeItemQuantity applies the end-of-edit rule: a line left at zero is
// removed from the cart.
func (s *Service) FinalizeItemQuantity(_ context.Context, productID string) domain.CartResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = cart.Finalize(s.cart, productID)
	return s.cartResponseLocked()
}

func (s *Service) RemoveFromCart(_ context.Context, productID string) domain.CartResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = cart.Remove(s.cart, productID)
	return s.cartResponseLocked()
}

// Checkout turns the open cart into a ledger entry and decrements catalog
// stock in one atomic commit. An empty cart is not an error: it returns a
// nil sale and changes nothing.
func (s *Service) Checkout(ctx context.Context) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cart) == 0 {
		return nil, nil
	}

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]domain.CartItem, len(s.cart))
	copy(items, s.cart)

	var total, totalCost float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
		totalCost += item.CostPrice * float64(item.Quantity)
	}

	sale := domain.Sale{
		ID:          xid.SaleID(now),
		Items:       items,
		Total:       total,
		TotalCost:   totalCost,
		TotalProfit: total - totalCost,
		Date:        now,
	}

	// Deduct stock line by line; lines whose product was deleted after they
	// entered the cart are skipped.
	for _, item := range items {
		if idx := findProduct(products, item.ProductID); idx >= 0 {
			products[idx].Stock -= item.Quantity
		}
	}

	if err := s.repo.CommitSale(ctx, sale, products); err != nil {
		return nil, err
	}

	s.cart = nil
	return &sale, nil
}

// ScanKey feeds one keystroke into the barcode decoder.
func (s *Service) ScanKey(_ context.Context, key string, inputFocused bool) {
	s.decoder.Key(key, inputFocused)
}

// ScanEnter commits the buffered code. A case-insensitive catalog match adds
// the product to the cart and switches the register to the sell view; an
// unmatched code is dropped silently.
func (s *Service) ScanEnter(ctx context.Context, inputFocused bool) (domain.ScanResponse, error) {
	code := s.decoder.Enter(inputFocused)

	s.mu.Lock()
	defer s.mu.Unlock()

	if code == "" {
		return domain.ScanResponse{View: s.view}, nil
	}

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.ScanResponse{}, err
	}

	for _, product := range products {
		if !strings.EqualFold(product.Code, code) {
			continue
		}
		s.cart = cart.Add(s.cart, product)
		s.view = ViewSell
		matched := product
		return domain.ScanResponse{Matched: true, Product: &matched, View: s.view}, nil
	}

	return domain.ScanResponse{View: s.view}, nil
}

func (s *Service) SalesHistory(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) Report(ctx context.Context, period string) (domain.SalesReport, error) {
	switch period {
	case "day", "week", "month":
	default:
		return domain.SalesReport{}, fmt.Errorf("%w: period must be day, week or month", store.ErrInvalidInput)
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return s.reports.Build(ctx, period, time.Now(), sales)
}

// LowStock lists products at or below the threshold, least stocked first.
// A non-positive threshold falls back to the configured default.
func (s *Service) LowStock(ctx context.Context, threshold int) (domain.LowStockResponse, error) {
	if threshold <= 0 {
		threshold = s.defaultLowStock
	}

	products, err := s.repo.LoadProducts(ctx)
	if err != nil {
		return domain.LowStockResponse{}, err
	}

	low := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if product.Stock <= threshold {
			low = append(low, product)
		}
	}
	slices.SortStableFunc(low, func(a, b domain.Product) int {
		return a.Stock - b.Stock
	})

	return domain.LowStockResponse{
		Threshold: threshold,
		Items:     low,
		Count:     len(low),
	}, nil
}

func (s *Service) cartResponseLocked() domain.CartResponse {
	items := make([]domain.CartItem, len(s.cart))
	copy(items, s.cart)
	return domain.CartResponse{Items: items, Total: cart.Total(items)}
}

func findProduct(products []domain.Product, productID string) int {
	for i, product := range products {
		if product.ID == productID {
			return i
		}
	}
	return -1
}

func codeTaken(products []domain.Product, code string, excludeID string) bool {
	for _, product := range products {
		if product.ID == excludeID {
			continue
		}
		if strings.EqualFold(product.Code, code) {
			return true
		}
	}
	return false
}
