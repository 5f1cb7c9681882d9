package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Product is a catalog entry as returned by the remote API. The client never keeps one beyond
// a single list fetch or edit session.
type Product struct {
	ID     string   `json:"id"`
	SKU    string   `json:"sku"`
	Name   string   `json:"name"`
	Price  string   `json:"price"`
	Images []string `json:"images"`
}

// UnmarshalJSON accepts the identity as either "id" or "_id" and the price as either a JSON string or number.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string          `json:"id"`
		AltID  string          `json:"_id"`
		SKU    string          `json:"sku"`
		Name   string          `json:"name"`
		Price  json.RawMessage `json:"price"`
		Images []string        `json:"images"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := decodePrice(raw.Price)
	if err != nil {
		return fmt.Errorf("product %s: %w", raw.ID+raw.AltID, err)
	}
	*p = Product{
		ID:     raw.ID,
		SKU:    raw.SKU,
		Name:   raw.Name,
		Price:  price,
		Images: raw.Images,
	}
	if p.ID == "" {
		p.ID = raw.AltID
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

func decodePrice(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid price: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid price: %w", err)
	}
	return n.String(), nil
}

// Upload is a file payload sent as one "images" part.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProductForm is the multipart body of a create or update call.
type ProductForm struct {
	SKU            string
	Name           string
	Price          string
	ExistingImages []string
	Images         []Upload
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the register request body.
type Registration struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Mobile   string `json:"mobile"   validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// DeleteOutcome tells a successful delete apart from a delete of an entry that was already gone.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota
	AlreadyGone
)

func (o DeleteOutcome) String() string {
	if o == AlreadyGone {
		return "already_gone"
	}
	return "deleted"
}
