// Package report aggregates the sales ledger into period summaries, per-day
// chart buckets and a top-profit product ranking.
package report

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"khaidee/backend/internal/cache"
	"khaidee/backend/internal/domain"
)

const topProductLimit = 5

type Engine struct {
	cache cache.ReportCache
	ttl   time.Duration
}

func NewEngine(reportCache cache.ReportCache, ttl time.Duration) *Engine {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Engine{cache: reportCache, ttl: ttl}
}

// PeriodStart computes the inclusive lower bound for a reporting period in
// now's location: midnight today, midnight of the most recent Sunday, or
// midnight on the first of the month.
func PeriodStart(now time.Time, period string) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case "day":
		return today, nil
	case "week":
		return today.AddDate(0, 0, -int(today.Weekday())), nil
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, fmt.Errorf("unknown report period %q", period)
	}
}

// Build filters the ledger to the period and aggregates it. Results are
// served from the cache when a fresh entry exists; stale reads are bounded by
// the cache TTL.
func (e *Engine) Build(ctx context.Context, period string, now time.Time, sales []domain.Sale) (domain.SalesReport, error) {
	start, err := PeriodStart(now, period)
	if err != nil {
		return domain.SalesReport{}, err
	}

	key := cacheKey(period, start)
	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[report] WARN: cache get failed key=%s: %v", key, err)
	}

	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.Date.Before(start) {
			continue
		}
		filtered = append(filtered, sale)
	}

	result := domain.SalesReport{
		Period:      period,
		PeriodStart: start,
		Summary:     summarize(filtered),
		Chart:       chartBuckets(filtered, now.Location()),
		TopProducts: topProducts(filtered),
	}

	if err := e.cache.Set(ctx, key, &result, e.ttl); err != nil {
		log.Printf("[report] WARN: cache set failed key=%s: %v", key, err)
	}
	return result, nil
}

func cacheKey(period string, start time.Time) string {
	return fmt.Sprintf("report:%s:%s", period, start.Format("2006-01-02"))
}

func summarize(sales []domain.Sale) domain.ReportSummary {
	var summary domain.ReportSummary
	for _, sale := range sales {
		summary.TotalRevenue += sale.Total
		summary.TotalProfit += sale.TotalProfit
		summary.TotalSales++
	}
	return summary
}

// chartBuckets groups revenue and profit by calendar date, oldest first.
func chartBuckets(sales []domain.Sale, loc *time.Location) []domain.ChartBucket {
	byDate := make(map[string]*domain.ChartBucket)
	for _, sale := range sales {
		date := sale.Date.In(loc).Format("2006-01-02")
		bucket, ok := byDate[date]
		if !ok {
			bucket = &domain.ChartBucket{Date: date}
			byDate[date] = bucket
		}
		bucket.Revenue += sale.Total
		bucket.Profit += sale.TotalProfit
	}

	buckets := make([]domain.ChartBucket, 0, len(byDate))
	for _, bucket := range byDate {
		buckets = append(buckets, *bucket)
	}
	slices.SortFunc(buckets, func(a, b domain.ChartBucket) int {
		return strings.Compare(a.Date, b.Date)
	})
	return buckets
}

// topProducts accumulates (price - cost price) * quantity per product across
// the filtered sales and keeps the five most profitable. Ties keep the order
// in which products first appeared.
func topProducts(sales []domain.Sale) []domain.ProductProfit {
	byProduct := make(map[string]*domain.ProductProfit)
	order := make([]string, 0, 16)

	for _, sale := range sales {
		for _, item := range sale.Items {
			profit := (item.Price - item.CostPrice) * float64(item.Quantity)
			entry, ok := byProduct[item.ProductID]
			if !ok {
				entry = &domain.ProductProfit{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = entry
				order = append(order, item.ProductID)
			}
			entry.Profit += profit
		}
	}

	ranked := make([]domain.ProductProfit, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, *byProduct[id])
	}
	slices.SortStableFunc(ranked, func(a, b domain.ProductProfit) int {
		switch {
		case a.Profit > b.Profit:
			return -1
		case a.Profit < b.Profit:
			return 1
		default:
			return 0
		}
	})
	if len(ranked) > topProductLimit {
		ranked = ranked[:topProductLimit]
	}
	return ranked
}
