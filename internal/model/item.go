package model

import "time"

// Item is the authoritative, currently accepted rate for a named taxable item.
// Name is unique across the item set.
type Item struct {
	Name        string    `json:"item_name" yaml:"name"`
	Rate        float64   `json:"tax_percentage" yaml:"rate"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	LastUpdated time.Time `json:"last_updated" yaml:"-"`
}

// Float returns a pointer to v. Used for nullable rate columns.
func Float(v float64) *float64 {
	return &v
}
