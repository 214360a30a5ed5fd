package domain

import (
	"encoding/json"
	"time"
)

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// SearchParams are the user-entered criteria of one flight search.
type SearchParams struct {
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate string     `json:"departure_date"`
	ReturnDate    string     `json:"return_date,omitempty"`
	Adults        int        `json:"adults"`
	Children      int        `json:"children,omitempty"`
	Infants       int        `json:"infants,omitempty"`
	CabinClass    CabinClass `json:"cabin_class,omitempty"`
}

// FlightOffer is one record returned by the search provider. Raw keeps the
// provider's payload verbatim; the remaining fields are the enrichment used
// by the booking flow.
type FlightOffer struct {
	ID            string          `json:"id"`
	SearchID      string          `json:"search_id,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Carrier       string          `json:"carrier"`
	FlightNumber  string          `json:"flight_number"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureTime time.Time       `json:"departure_time"`
	ArrivalTime   time.Time       `json:"arrival_time"`
	Stops         int             `json:"stops"`
	PriceCents    int64           `json:"price_cents"`
	Currency      string          `json:"currency"`
	SeatsLeft     int             `json:"seats_left,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// SearchResultCacheEntry is one cached upstream result set. Entries are
// never mutated after creation except for the Active flag.
type SearchResultCacheEntry struct {
	ID        int64
	SearchID  string
	Params    SearchParams
	Results   []FlightOffer
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// Valid reports whether the entry may be served at now.
func (e *SearchResultCacheEntry) Valid(now time.Time) bool {
	return e != nil && e.Active && now.Before(e.ExpiresAt)
}
