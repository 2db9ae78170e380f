package domain

import "time"

// BuyNowSelection is the single pending express-checkout line of a user.
// Version changes on every write so a consumer can clear only what it read.
type BuyNowSelection struct {
	ProductID string
	Quantity  int
	Version   string
	UpdatedAt time.Time
}

func (s BuyNowSelection) Complete() bool {
	return s.ProductID != "" && s.Quantity >= 1 && s.Version != ""
}
