//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products", customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 6 {
		t.Fatalf("expected 6 products, got %d", len(products))
	}
}

func TestListProducts_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/products", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestListProducts_Fields(t *testing.T) {
	resp := doGet(t, "/api/products", customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)

	var maker *productResponse
	for i := range products {
		if products[i].ID == "prod-espresso-maker" {
			maker = &products[i]
			break
		}
	}

	if maker == nil {
		t.Fatal("product prod-espresso-maker not found")
	}
	if maker.Name != "Stovetop Espresso Maker" {
		t.Errorf("name: got %q, want %q", maker.Name, "Stovetop Espresso Maker")
	}
	if maker.SellerID != "seller-1" {
		t.Errorf("seller_id: got %q, want seller-1", maker.SellerID)
	}
	if maker.Price != 39.9 {
		t.Errorf("price: got %v, want 39.9", maker.Price)
	}
	if maker.Category != "Kitchen" {
		t.Errorf("category: got %q, want Kitchen", maker.Category)
	}
	if maker.Stock <= 0 {
		t.Errorf("stock: got %d, want positive", maker.Stock)
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/prod-yoga-mat", customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.ID != "prod-yoga-mat" {
		t.Errorf("id: got %q, want prod-yoga-mat", p.ID)
	}
	if p.Name != "Non-Slip Yoga Mat" {
		t.Errorf("name: got %q, want %q", p.Name, "Non-Slip Yoga Mat")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/prod-unknown", customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
