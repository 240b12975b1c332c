package cart

import "github.com/judyrop/catering-backend/models"

// Line is one product in a cart. Name and Price are the catalog values at the
// moment the product was added.
type Line struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Cart is an ordered list of lines. Every line has a positive quantity.
type Cart struct {
	Lines []Line `json:"lines"`
}

// AddLine adds one unit of the product, appending a new line if needed.
func (c *Cart) AddLine(productID, name string, price float64) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity++
			return
		}
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Name: name, Price: price, Quantity: 1})
}

// SetQuantity sets the line quantity, clamped at zero. Zero removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveLine(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
}

func (c *Cart) RemoveLine(productID string) {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}

func (c *Cart) Clear() {
	c.Lines = nil
}

// Snapshot returns a copy of the lines that later mutations do not affect.
func (c *Cart) Snapshot() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Price * float64(l.Quantity)
	}
	return models.RoundCents(total)
}

// normalize drops lines that a stored payload may carry with a non-positive quantity.
func (c *Cart) normalize() {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.Quantity > 0 && l.ProductID != "" {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}
