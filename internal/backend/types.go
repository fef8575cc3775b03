package backend

import "time"

// Dispenser is a physical vending unit as reported by the backend.
type Dispenser struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`
	Nombre   string `json:"nombre"`
}

// Product is one configured slot product. Slot 1 dispenses cold water,
// slot 2 hot water.
type Product struct {
	ID         int64   `json:"id"`
	Nombre     string  `json:"nombre"`
	Precio     float64 `json:"precio"`
	Slot       int     `json:"slot"`
	Habilitado bool    `json:"habilitado"`
}

// NewProduct is the payload for creating a product on a dispenser slot.
type NewProduct struct {
	Nombre      string  `json:"nombre"`
	Precio      float64 `json:"precio"`
	Habilitado  bool    `json:"habilitado"`
	Slot        int     `json:"slot"`
	DispenserID int64   `json:"dispenser_id"`
}

// ProductPatch is a partial update of a product. Nil fields are omitted
// from the request body.
type ProductPatch struct {
	Nombre     *string  `json:"nombre,omitempty"`
	Precio     *float64 `json:"precio,omitempty"`
	Habilitado *bool    `json:"habilitado,omitempty"`
	Slot       *int     `json:"slot,omitempty"`
}

// Payment is an immutable transaction record from the backend.
type Payment struct {
	ID          int64     `json:"id"`
	MPPaymentID string    `json:"mp_payment_id"`
	Estado      string    `json:"estado"`
	Monto       float64   `json:"monto"`
	SlotID      int       `json:"slot_id"`
	Producto    string    `json:"producto"`
	DeviceID    string    `json:"device_id"`
	CreatedAt   time.Time `json:"created_at"`
	Dispensado  bool      `json:"dispensado"`
}

// OAuthStatus reports whether the operator's MercadoPago account is linked.
type OAuthStatus struct {
	Vinculado bool   `json:"vinculado"`
	UserID    string `json:"user_id"`
}

// dispenserResponse wraps a created dispenser.
type dispenserResponse struct {
	Dispenser Dispenser `json:"dispenser"`
}

// productResponse wraps the product echoed back by create/update calls.
type productResponse struct {
	Producto *Product `json:"producto"`
}

// configResponse models GET /api/config.
type configResponse struct {
	MPMode string `json:"mp_mode"`
}

// preferenceResponse models POST /api/pagos/preferencia.
type preferenceResponse struct {
	OK   bool   `json:"ok"`
	Link string `json:"link"`
}

// retryResponse models POST /api/pagos/{id}/reenviar.
type retryResponse struct {
	Msg string `json:"msg"`
}

// oauthInitResponse models GET /api/mp/oauth/init. The backend has shipped
// both field names over time.
type oauthInitResponse struct {
	URL     string `json:"url"`
	AuthURL string `json:"auth_url"`
}
