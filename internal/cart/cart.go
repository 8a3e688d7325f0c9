// Package cart holds the pure cart-building rules. Functions never mutate
// their input: they return a fresh slice so the caller can treat carts as
// values.
package cart

import "khaidee/backend/internal/domain"

// Add puts one unit of product into the cart. An existing line grows by one
// only while its quantity is below the product's current stock; a new line is
// created only when stock is positive. Both caps fail silently.
func Add(items []domain.CartItem, product domain.Product) []domain.CartItem {
	for i, item := range items {
		if item.ProductID != product.ID {
			continue
		}
		out := clone(items)
		if item.Quantity < product.Stock {
			out[i].Quantity++
		}
		return out
	}

	if product.Stock <= 0 {
		return clone(items)
	}
	out := clone(items)
	return append(out, domain.CartItem{
		ProductID:   product.ID,
		ProductCode: product.Code,
		Name:        product.Name,
		Price:       product.Price,
		CostPrice:   product.CostPrice,
		Quantity:    1,
	})
}

// SetQuantity clamps the requested quantity into [0, stock]. Zero is kept in
// the cart so a quantity field can be cleared while typing; Finalize applies
// the removal once editing ends.
func SetQuantity(items []domain.CartItem, productID string, stock int, quantity int) []domain.CartItem {
	out := clone(items)
	for i, item := range out {
		if item.ProductID != productID {
			continue
		}
		if quantity > stock {
			quantity = stock
		}
		if quantity < 0 {
			quantity = 0
		}
		out[i].Quantity = quantity
		return out
	}
	return out
}

// Finalize removes the line when its quantity ended up at zero or below.
func Finalize(items []domain.CartItem, productID string) []domain.CartItem {
	for _, item := range items {
		if item.ProductID == productID && item.Quantity <= 0 {
			return Remove(items, productID)
		}
	}
	return clone(items)
}

func Remove(items []domain.CartItem, productID string) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == productID {
			continue
		}
		out = append(out, item)
	}
	return out
}

func Total(items []domain.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func clone(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
