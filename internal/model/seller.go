package model

import "time"

// Seller is a movie theater organization. BranchCode is the theater code
// used by the seat reservation gateway.
//
// Fields:
//  GMO                – payment gateway shop credentials.
//  PointAccountNumber – receiving account for transfer-type point payments.
type Seller struct {
	ID                 string    `json:"id"`
	Identifier         string    `json:"identifier"`
	Name               string    `json:"name"`
	BranchCode         string    `json:"branchCode"`
	Telephone          string    `json:"telephone"`
	Email              string    `json:"email"`
	URL                string    `json:"url"`
	GMO                GMOShop   `json:"gmo"`
	PointAccountNumber string    `json:"pointAccountNumber,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// GMOShop holds the payment gateway shop credentials of a seller.
type GMOShop struct {
	SiteID   string `json:"siteId"`
	ShopID   string `json:"shopId"`
	ShopPass string `json:"shopPass"`
}

// AsParty returns the seller snapshot used on transactions and orders.
func (s Seller) AsParty() Party {
	return Party{ID: s.ID, TypeOf: PartyTypeMovieTheater, Name: s.Name, URL: s.URL}
}
