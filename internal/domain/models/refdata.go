package models

// Exchange describes one international venue scanned by the INTL source.
type Exchange struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	TVExchange  string `json:"tvExchange"`
	Currency    string `json:"currency,omitempty"`
}

// CountryCompanies is the whitelist of symbols shown for one country.
type CountryCompanies struct {
	Country   string   `json:"country"`
	Companies []string `json:"companies"`
}
