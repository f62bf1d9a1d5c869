package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		BaseURL:            srv.URL + "/api/v1",
		BreakerMaxFailures: 2,
		BreakerOpenTimeout: time.Minute,
	})
	require.NoError(t, err)
	return client, srv
}

func checkoutRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Email: "shopper@example.com",
		Items: []domain.CheckoutItem{{
			ProductID: "car-1",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("24999.99"),
			Title:     "Camry",
			Image:     "https://img.example.com/camry.png",
		}},
	}
}

func TestCreateCheckoutSession_SendsPayload(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/checkout-sessions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Write([]byte(`{"status":true,"message":"ok","data":{"sessionId":"cs_test_1"}}`))
	})

	session, err := client.CreateCheckoutSession(context.Background(), "tok", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.SessionID)

	assert.Equal(t, "shopper@example.com", gotBody["email"])
	items := gotBody["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "car-1", item["productId"])
	assert.Equal(t, 2.0, item["quantity"])
	assert.Equal(t, 24999.99, item["unitPrice"])
	assert.Equal(t, "Camry", item["title"])
	assert.Equal(t, "https://img.example.com/camry.png", item["image"])
}

func TestCreateCheckoutSession_BareResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sessionId":"cs_bare"}`))
	})

	session, err := client.CreateCheckoutSession(context.Background(), "", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_bare", session.SessionID)
}

func TestCreateCheckoutSession_MissingSessionID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"sessionId":""}}`))
	})

	_, err := client.CreateCheckoutSession(context.Background(), "tok", checkoutRequest())
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestCreateCheckoutSession_BackendMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":false,"message":"Car out of stock"}`))
	})

	_, err := client.CreateCheckoutSession(context.Background(), "tok", checkoutRequest())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Car out of stock", MessageOf(err))
}

func TestVerifyPayment_Envelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/checkout-sessions/cs_1/verify", r.URL.Path)
		w.Write([]byte(`{
			"status": true,
			"message": "Order processing delayed",
			"data": {
				"verified": true,
				"orderError": true,
				"orders": [
					{"_id": "o1", "quantity": 1, "totalprice": 1500.5, "notes": "blue"},
					{"id": "o2", "quantity": 2, "totalPrice": "3000"}
				]
			}
		}`))
	})

	result, err := client.VerifyPayment(context.Background(), "tok", "cs_1")
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.True(t, result.OrderError)
	assert.Equal(t, "Order processing delayed", result.Message)
	require.Len(t, result.Orders, 2)
	assert.Equal(t, "o1", result.Orders[0].ID)
	assert.True(t, decimal.RequireFromString("1500.5").Equal(result.Orders[0].TotalPrice))
	assert.Equal(t, "blue", result.Orders[0].Notes)
	assert.Equal(t, "o2", result.Orders[1].ID)
	assert.Equal(t, 2, result.Orders[1].Quantity)
}

func TestVerifyPayment_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"jwt expired"}`))
	})

	_, err := client.VerifyPayment(context.Background(), "old", "cs_1")

	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":true,"message":"Login successful","token":"jwt-token",
			"data":{"_id":"u1","email":"shopper@example.com","name":"Sam","role":"user"}}`))
	})

	session, err := client.Login(context.Background(), "shopper@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", session.Token)
	assert.Equal(t, "shopper@example.com", session.Identity.Email)
	assert.Equal(t, "u1", session.Identity.ID)
}

func TestLogin_NoToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{}}`))
	})

	_, err := client.Login(context.Background(), "a@b.c", "x")
	assert.Error(t, err)
}

func TestGetCar(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cars/c9", r.URL.Path)
		w.Write([]byte(`{"status":true,"data":{"_id":"c9","title":"Civic","brand":"Honda","model":"EX",
			"image":"civic.png","price":21000,"inStock":true,"quantity":3}}`))
	})

	car, err := client.GetCar(context.Background(), "c9")
	require.NoError(t, err)
	assert.Equal(t, "Civic", car.Title)
	assert.True(t, decimal.NewFromInt(21000).Equal(car.Price))
	assert.True(t, car.Available())
}

func TestGetCar_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetCar(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestListOrders_PopulatedCar(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/user/shopper@example.com", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":true,"data":[
			{"_id":"o1","email":"shopper@example.com",
			 "carId":{"_id":"c1","title":"Supra","brand":"Toyota","model":"GR","image":"supra.png","price":55000},
			 "quantity":1,"totalprice":55000,"paymentStatus":"paid","paymentMethod":"card",
			 "createdAt":"2024-05-01T10:00:00.000Z","notes":"gift"},
			{"_id":"o2","carId":"c2","quantity":2,"totalprice":"30000","paymentStatus":"pending"}
		]}`))
	})

	orders, err := client.ListOrders(context.Background(), "tok", "shopper@example.com")
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "c1", orders[0].CarID)
	assert.Equal(t, "Supra", orders[0].Title)
	assert.Equal(t, "Toyota", orders[0].Brand)
	assert.Equal(t, "paid", orders[0].PaymentStatus)
	assert.Equal(t, "gift", orders[0].Notes)
	assert.Equal(t, 2024, orders[0].CreatedAt.Year())
	assert.True(t, decimal.NewFromInt(55000).Equal(orders[0].TotalPrice))

	assert.Equal(t, "c2", orders[1].CarID)
	assert.Empty(t, orders[1].Title)
	assert.Equal(t, 2, orders[1].Quantity)
	assert.True(t, orders[1].CreatedAt.IsZero())
}

func TestListOrders_BareArrayAndEmpty(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`[{"id":"o9","quantity":1,"totalPrice":10}]`))
			return
		}
		w.Write([]byte(`{"status":true,"data":[]}`))
	})

	orders, err := client.ListOrders(context.Background(), "tok", "a@b.c")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o9", orders[0].ID)

	orders, err = client.ListOrders(context.Background(), "tok", "a@b.c")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestListOrders_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Access denied"}`))
	})

	_, err := client.ListOrders(context.Background(), "old", "a@b.c")
	assert.True(t, IsUnauthorized(err))
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := client.VerifyPayment(context.Background(), "", "cs")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}

	_, err := client.VerifyPayment(context.Background(), "", "cs")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 4; i++ {
		_, err := client.GetCar(context.Background(), "x")
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}
