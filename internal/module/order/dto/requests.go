package dto

// PlaceOrderRequest is the inbound order payload.
type PlaceOrderRequest struct {
	Symbol      string  `json:"symbol" binding:"required"`
	Exchange    string  `json:"exchange"`
	Side        string  `json:"side" binding:"required"`
	OrderType   string  `json:"order_type" binding:"required"`
	Quantity    int64   `json:"quantity" binding:"required"`
	Price       float64 `json:"price"`
	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`
}
