package api

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderHappyPath(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")

	clientID := seedClient(t, h, "V-12345678", "María González")
	productID := seedProduct(t, h, "COC-005", "Vestido Floral", "4500.00", 10)

	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id":   clientID,
		"products":    []map[string]any{{"id": productID, "cantidad": 2, "precio_usd": 4500.00}},
		"metodo_pago": "efectivo",
		"total":       9000.00, // caller value, must be ignored
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeBody[orderResponse](t, w)
	assert.NotZero(t, resp.ID)
	assert.NotEmpty(t, resp.Referencia)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("9000")), "total = %s", resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(2), resp.Items[0].Cantidad)

	assert.Equal(t, int64(8), productStock(t, h, productID))
	assert.Equal(t, int64(1), countRows(t, h, "pedidos"))
	assert.Equal(t, int64(1), countRows(t, h, "detalles_pedido"))
}

func TestCreateOrderRecomputesTotals(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")

	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 5)

	// Caller lies about the total; items cost 3 x 10 = 30, minus 5 discount
	// plus 2 delivery = 27.
	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products":  []map[string]any{{"id": productID, "cantidad": 3}},
		"descuento": "5",
		"delivery":  "2",
		"subtotal":  "1",
		"total":     "1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody[orderResponse](t, w)
	assert.True(t, resp.Subtotal.Equal(decimal.RequireFromString("30")), "subtotal = %s", resp.Subtotal)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("27")), "total = %s", resp.Total)
}

func TestCreateOrderUnknownClient(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 5)

	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": 99999,
		"products":  []map[string]any{{"id": productID, "cantidad": 1}},
	})
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
	assert.Equal(t, int64(0), countRows(t, h, "detalles_pedido"))
	assert.Equal(t, int64(5), productStock(t, h, productID))
}

func TestCreateOrderEmptyItems(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")

	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products":  []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
}

func TestCreateOrderAtomicOnBadLineItem(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 5)

	// One valid line, one referencing a nonexistent product.
	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products": []map[string]any{
			{"id": productID, "cantidad": 2},
			{"id": 424242, "cantidad": 1},
		},
	})
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
	assert.Equal(t, int64(0), countRows(t, h, "detalles_pedido"))
	assert.Equal(t, int64(5), productStock(t, h, productID), "stock must be untouched after rollback")
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 2)

	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products":  []map[string]any{{"id": productID, "cantidad": 3}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, int64(2), productStock(t, h, productID))
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
}

func TestCreateOrderRepeatedLineExceedsStock(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 5)

	// Each line fits the stock on its own; together they don't.
	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products": []map[string]any{
			{"id": productID, "cantidad": 3},
			{"id": productID, "cantidad": 3},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, int64(5), productStock(t, h, productID))
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
	assert.Equal(t, int64(0), countRows(t, h, "detalles_pedido"))
}

func TestCreateOrderNegativePrice(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 5)

	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products":  []map[string]any{{"id": productID, "cantidad": 1, "precio_usd": "-10.00"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
	assert.Equal(t, int64(5), productStock(t, h, productID))
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 10)

	body := map[string]any{
		"client_id":       clientID,
		"products":        []map[string]any{{"id": productID, "cantidad": 3}},
		"idempotency_key": "retry-abc-123",
	}

	w1 := doRequest(t, h, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusCreated, w1.Code, w1.Body.String())
	first := decodeBody[orderResponse](t, w1)

	// The client timed out and retries the identical request.
	w2 := doRequest(t, h, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())
	second := decodeBody[orderResponse](t, w2)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Referencia, second.Referencia)
	assert.Equal(t, int64(7), productStock(t, h, productID), "stock decremented exactly once")
	assert.Equal(t, int64(1), countRows(t, h, "pedidos"))
	assert.Equal(t, int64(1), countRows(t, h, "detalles_pedido"))
}

func TestCreateOrderDiscountExceedsSubtotal(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 5)

	w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
		"client_id": clientID,
		"products":  []map[string]any{{"id": productID, "cantidad": 1}},
		"descuento": "50",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, int64(0), countRows(t, h, "pedidos"))
}

func TestListOrdersNewestFirst(t *testing.T) {
	h := newTestHandler(t)
	uid := seedUser(t, h, "vendedora", "secret123", "seller")
	token := testToken(t, h, uid, "seller")
	clientID := seedClient(t, h, "V-1", "Ana")
	productID := seedProduct(t, h, "P-1", "Blusa", "10.00", 50)

	for i := 0; i < 3; i++ {
		w := doRequest(t, h, http.MethodPost, "/api/orders", token, map[string]any{
			"client_id": clientID,
			"products":  []map[string]any{{"id": productID, "cantidad": 1}},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(t, h, http.MethodGet, "/api/sales?limit=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decodeBody[[]orderResponse](t, w)
	require.Len(t, orders, 2)
	assert.Greater(t, orders[0].ID, orders[1].ID)
	require.Len(t, orders[0].Items, 1)
}
