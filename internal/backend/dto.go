package backend

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// envelope is the {status, message, data} wrapper the backend puts around
// most responses.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// unwrap returns the payload inside data when present, otherwise the whole
// body, plus the envelope message.
func unwrap(body []byte) (json.RawMessage, string, error) {
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, "", nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, "", err
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return body, env.Message, nil
	}
	return data, env.Message, nil
}

type checkoutItemDTO struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unitPrice"`
	Title     string      `json:"title"`
	Image     string      `json:"image"`
}

type checkoutRequestDTO struct {
	Items []checkoutItemDTO `json:"items"`
	Email string            `json:"email"`
}

func newCheckoutRequestDTO(req domain.CheckoutRequest) checkoutRequestDTO {
	items := make([]checkoutItemDTO, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkoutItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: json.Number(item.UnitPrice.String()),
			Title:     item.Title,
			Image:     item.Image,
		})
	}
	return checkoutRequestDTO{Items: items, Email: req.Email}
}

type checkoutSessionDTO struct {
	SessionID string `json:"sessionId"`
}

// orderDTO accepts both the verify payload and the order history rows, where
// carId is either an id or the populated car.
type orderDTO struct {
	ID            string          `json:"id"`
	LegacyID      string          `json:"_id"`
	Car           json.RawMessage `json:"carId"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
	Notes         string          `json:"notes"`
}

func (o orderDTO) toDomain() domain.Order {
	id := o.ID
	if id == "" {
		id = o.LegacyID
	}
	order := domain.Order{
		ID:            id,
		Quantity:      o.Quantity,
		TotalPrice:    o.TotalPrice,
		Notes:         o.Notes,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt,
	}

	raw := bytes.TrimSpace(o.Car)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		_ = json.Unmarshal(raw, &order.CarID)
	default:
		var car carDTO
		if err := json.Unmarshal(raw, &car); err == nil {
			order.CarID = car.ID
			order.Title = car.Title
			order.Brand = car.Brand
			order.Model = car.Model
			order.Image = car.Image
		}
	}
	return order
}

type verifyResultDTO struct {
	Verified   bool       `json:"verified"`
	OrderError bool       `json:"orderError"`
	Orders     []orderDTO `json:"orders"`
}

type loginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userDTO struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type loginResponseDTO struct {
	Message string  `json:"message"`
	Token   string  `json:"token"`
	Data    userDTO `json:"data"`
}

type carDTO struct {
	ID       string          `json:"_id"`
	Title    string          `json:"title"`
	Brand    string          `json:"brand"`
	Model    string          `json:"model"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	InStock  bool            `json:"inStock"`
	Quantity int             `json:"quantity"`
}

func (c carDTO) toDomain() domain.Car {
	return domain.Car{
		ID:       c.ID,
		Title:    c.Title,
		Brand:    c.Brand,
		Model:    c.Model,
		Image:    c.Image,
		Price:    c.Price,
		InStock:  c.InStock,
		Quantity: c.Quantity,
	}
}
