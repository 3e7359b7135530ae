package model

import "time"

// ScreeningEvent is one screening of a film in a theater screen. The gateway
// codes identify the screening on the seat reservation gateway.
type ScreeningEvent struct {
	Identifier     string    `json:"identifier"`
	Name           string    `json:"name"`
	SellerID       string    `json:"sellerId"`
	TheaterCode    string    `json:"theaterCode"`
	ScreenCode     string    `json:"screenCode"`
	DateJouei      string    `json:"dateJouei"`
	TitleCode      string    `json:"titleCode"`
	TitleBranchNum string    `json:"titleBranchNum"`
	TimeBegin      string    `json:"timeBegin"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	MvtkExcludeFlg string    `json:"mvtkExcludeFlg"`
}

// Ref returns the gateway reference of the event.
func (e ScreeningEvent) Ref() EventRef {
	return EventRef{
		Identifier:     e.Identifier,
		TheaterCode:    e.TheaterCode,
		DateJouei:      e.DateJouei,
		TitleCode:      e.TitleCode,
		TitleBranchNum: e.TitleBranchNum,
		TimeBegin:      e.TimeBegin,
		ScreenCode:     e.ScreenCode,
	}
}
