package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"khaidee/backend/internal/cache"
	"khaidee/backend/internal/domain"
	"khaidee/backend/internal/report"
	"khaidee/backend/internal/scanner"
	"khaidee/backend/internal/store"
	"khaidee/backend/internal/store/memory"
)

// manualTimer keeps the scan idle window from firing so tests control the
// buffer lifetime themselves.
type manualTimer struct{}

func (manualTimer) Schedule(_ time.Duration, _ func()) func() {
	return func() {}
}

func newTestService() *Service {
	repo := memory.NewSeeded()
	reports := report.NewEngine(cache.NoopReportCache{}, 5*time.Second)
	decoder := scanner.NewDecoder(scanner.DefaultIdleWindow, manualTimer{})
	return New(repo, reports, decoder, 5)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func productByCode(t *testing.T, svc *Service, code string) domain.Product {
	t.Helper()
	products, err := svc.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if p.Code == code {
			return p
		}
	}
	t.Fatalf("product %s not found", code)
	return domain.Product{}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Code: "NEW-01", Name: "ลูกชิ้นปิ้ง", Price: 10, CostPrice: 6, Stock: 40,
	})
	if err == nil {
		t.Fatal("expected create to fail for cashier role")
	}
}

func TestCreateProductRejectsDuplicateCode(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Code: "coke-01", Name: "โค้กซีโร่", Price: 15, CostPrice: 11, Stock: 30,
	})
	if !errors.Is(err, store.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode for case-insensitive clash, got %v", err)
	}
}

func TestUpdateProductDuplicateCodeExcludesSelf(t *testing.T) {
	svc := newTestService()
	p := productByCode(t, svc, "COKE-01")

	// Re-submitting a product's own code must not count as a duplicate.
	code := "coke-01"
	updated, err := svc.UpdateProduct(adminCtx(), p.ID, domain.ProductUpdateRequest{Code: &code})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Code != "COKE-01" {
		t.Fatalf("expected normalized code COKE-01, got %s", updated.Code)
	}

	other := productByCode(t, svc, "WATER-01")
	clash := "COKE-01"
	if _, err := svc.UpdateProduct(adminCtx(), other.ID, domain.ProductUpdateRequest{Code: &clash}); !errors.Is(err, store.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestAddStock(t *testing.T) {
	svc := newTestService()
	p := productByCode(t, svc, "WATER-01")

	updated, err := svc.AddStock(adminCtx(), p.ID, 30)
	if err != nil {
		t.Fatalf("add stock failed: %v", err)
	}
	if updated.Stock != p.Stock+30 {
		t.Fatalf("expected stock %d, got %d", p.Stock+30, updated.Stock)
	}

	if _, err := svc.AddStock(adminCtx(), p.ID, 0); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
}

func TestCartEditsKeepPriceSnapshot(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := productByCode(t, svc, "MPG-01")

	if _, err := svc.AddToCart(ctx, p.ID); err != nil {
		t.Fatalf("add to cart: %v", err)
	}

	newPrice := p.Price + 5
	if _, err := svc.UpdateProduct(adminCtx(), p.ID, domain.ProductUpdateRequest{Price: &newPrice}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	resp := svc.Cart(ctx)
	if len(resp.Items) != 1 || resp.Items[0].Price != p.Price {
		t.Fatalf("cart line should keep the snapshot price %v, got %+v", p.Price, resp.Items)
	}
}

func TestCheckoutEmptyCartIsNoop(t *testing.T) {
	svc := newTestService()

	sale, err := svc.Checkout(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sale != nil {
		t.Fatalf("expected nil sale for empty cart, got %+v", sale)
	}

	sales, err := svc.SalesHistory(context.Background())
	if err != nil {
		t.Fatalf("sales history: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected empty ledger, got %d sales", len(sales))
	}
}

func TestCheckoutDeductsStockAndAppendsLedger(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := productByCode(t, svc, "MPG-01")

	for i := 0; i < 3; i++ {
		if _, err := svc.AddToCart(ctx, p.ID); err != nil {
			t.Fatalf("add to cart: %v", err)
		}
	}

	sale, err := svc.Checkout(ctx)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if sale == nil {
		t.Fatal("expected a sale")
	}
	if sale.Total != p.Price*3 {
		t.Fatalf("expected total %v, got %v", p.Price*3, sale.Total)
	}
	wantProfit := (p.Price - p.CostPrice) * 3
	if sale.TotalProfit != wantProfit {
		t.Fatalf("expected profit %v, got %v", wantProfit, sale.TotalProfit)
	}

	if got := productByCode(t, svc, "MPG-01").Stock; got != p.Stock-3 {
		t.Fatalf("expected stock %d after checkout, got %d", p.Stock-3, got)
	}

	if resp := svc.Cart(ctx); len(resp.Items) != 0 {
		t.Fatalf("expected cart cleared, got %+v", resp.Items)
	}

	sales, err := svc.SalesHistory(ctx)
	if err != nil {
		t.Fatalf("sales history: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != sale.ID {
		t.Fatalf("expected ledger with the new sale, got %+v", sales)
	}
}

func TestCheckoutSkipsDeletedProductLines(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	pork := productByCode(t, svc, "MPG-01")
	rice := productByCode(t, svc, "KNW-01")

	if _, err := svc.AddToCart(ctx, pork.ID); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	if _, err := svc.AddToCart(ctx, rice.ID); err != nil {
		t.Fatalf("add to cart: %v", err)
	}

	if err := svc.DeleteProduct(adminCtx(), pork.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	sale, err := svc.Checkout(ctx)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	// The stale line still sells at its snapshot price.
	if len(sale.Items) != 2 || sale.Total != pork.Price+rice.Price {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	if got := productByCode(t, svc, "KNW-01").Stock; got != rice.Stock-1 {
		t.Fatalf("expected rice stock %d, got %d", rice.Stock-1, got)
	}
}

func TestLedgerIsNewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := productByCode(t, svc, "WATER-01")

	var ids []string
	for i := 0; i < 3; i++ {
		if _, err := svc.AddToCart(ctx, p.ID); err != nil {
			t.Fatalf("add to cart: %v", err)
		}
		sale, err := svc.Checkout(ctx)
		if err != nil {
			t.Fatalf("checkout failed: %v", err)
		}
		ids = append(ids, sale.ID)
	}

	sales, err := svc.SalesHistory(ctx)
	if err != nil {
		t.Fatalf("sales history: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(sales))
	}
	for i := 0; i < 3; i++ {
		if sales[i].ID != ids[2-i] {
			t.Fatalf("ledger not newest-first: %+v", sales)
		}
	}
}

func TestScanMatchAddsToCartAndSwitchesView(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, r := range "coke-01" {
		svc.ScanKey(ctx, string(r), false)
	}
	resp, err := svc.ScanEnter(ctx, false)
	if err != nil {
		t.Fatalf("scan enter: %v", err)
	}

	if !resp.Matched || resp.Product == nil || resp.Product.Code != "COKE-01" {
		t.Fatalf("expected case-insensitive match, got %+v", resp)
	}
	if resp.View != ViewSell {
		t.Fatalf("expected sell view, got %s", resp.View)
	}
	if cartResp := svc.Cart(ctx); len(cartResp.Items) != 1 || cartResp.Items[0].ProductCode != "COKE-01" {
		t.Fatalf("expected scanned product in cart, got %+v", cartResp.Items)
	}
}

func TestScanUnknownCodeIsSilentlyDropped(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, r := range "NOPE-99" {
		svc.ScanKey(ctx, string(r), false)
	}
	resp, err := svc.ScanEnter(ctx, false)
	if err != nil {
		t.Fatalf("scan enter: %v", err)
	}

	if resp.Matched {
		t.Fatalf("expected no match, got %+v", resp)
	}
	if resp.View != ViewDashboard {
		t.Fatalf("expected view unchanged, got %s", resp.View)
	}
	if cartResp := svc.Cart(ctx); len(cartResp.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cartResp.Items)
	}

	// Buffer was cleared by the failed commit.
	again, err := svc.ScanEnter(ctx, false)
	if err != nil {
		t.Fatalf("scan enter: %v", err)
	}
	if again.Matched {
		t.Fatalf("expected empty commit, got %+v", again)
	}
}

func TestReportRejectsUnknownPeriod(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Report(context.Background(), "year"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReportCoversTodaySales(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := productByCode(t, svc, "MPG-01")

	if _, err := svc.AddToCart(ctx, p.ID); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	if _, err := svc.Checkout(ctx); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	got, err := svc.Report(ctx, "day")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if got.Summary.TotalSales != 1 || got.Summary.TotalRevenue != p.Price {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
	if len(got.Chart) != 1 {
		t.Fatalf("expected one chart bucket, got %+v", got.Chart)
	}
	if len(got.TopProducts) != 1 || got.TopProducts[0].ProductID != p.ID {
		t.Fatalf("unexpected top products: %+v", got.TopProducts)
	}
}

func TestLowStockThresholdAndOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	resp, err := svc.LowStock(ctx, 60)
	if err != nil {
		t.Fatalf("low stock failed: %v", err)
	}
	// Seed catalog holds stocks 100, 80, 200, 50, 60, 120.
	if resp.Count != 2 || len(resp.Items) != 2 {
		t.Fatalf("expected 2 low items, got %+v", resp)
	}
	if resp.Items[0].Stock != 50 || resp.Items[1].Stock != 60 {
		t.Fatalf("expected ascending stock order, got %+v", resp.Items)
	}
	if resp.Threshold != 60 {
		t.Fatalf("expected threshold echoed back, got %d", resp.Threshold)
	}
}

func TestLowStockDefaultThreshold(t *testing.T) {
	svc := newTestService()

	resp, err := svc.LowStock(context.Background(), 0)
	if err != nil {
		t.Fatalf("low stock failed: %v", err)
	}
	if resp.Threshold != 5 {
		t.Fatalf("expected default threshold 5, got %d", resp.Threshold)
	}
	if resp.Count != 0 {
		t.Fatalf("expected no seed product at or below 5, got %+v", resp.Items)
	}
}
