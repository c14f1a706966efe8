package transport

// MaxLineQuantity caps one line, and the merged quantity of one product,
// well below the int range. Keep in step with the lte rule on Quantity.
const MaxLineQuantity = 1_000_000

type CreateOrderItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"gte=1,lte=1000000"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items"            validate:"required,min=1,dive"`
	ShippingAddress string            `json:"shipping_address" validate:"min=10,max=200"`
	Phone           string            `json:"phone"            validate:"required,max=20,phone"`
	Notes           *string           `json:"notes"            validate:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CancelResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type StatusResponse struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ErrorResponse is the body of every domain failure. Only the fields that
// name the offending entity for the given error are set.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}
