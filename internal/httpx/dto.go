package httpx

// CreateProductRequest is the POST /products body. The wire field names
// match the stored record format.
type CreateProductRequest struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	SupplierEmail string  `json:"supplierEmail,omitempty"`
}

// ProductResponse is a product as returned to clients.
type ProductResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	Version       int64   `json:"version"`
	SupplierEmail string  `json:"supplierEmail,omitempty"`
}

// PlaceOrderRequest is the POST /orders body. The purchaser comes from the
// bearer token, never from the body.
type PlaceOrderRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderResponse is a committed order as returned to clients.
type OrderResponse struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
	Quantity  int    `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}

// DownloadURLResponse carries a signed asset URL.
type DownloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
