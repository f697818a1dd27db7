package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"MarketRelay/internal/domain/models"
)

type exchangesFile struct {
	Exchanges []models.Exchange `json:"exchanges"`
}

// Directory is the read-only exchange table plus the per-country whitelist.
type Directory struct {
	exchanges []models.Exchange
	companies map[string]models.CountryCompanies
}

func New(exchanges []models.Exchange, companies map[string]models.CountryCompanies) *Directory {
	d := &Directory{
		exchanges: exchanges,
		companies: make(map[string]models.CountryCompanies, len(companies)),
	}
	for code, c := range companies {
		d.companies[strings.ToUpper(code)] = c
	}
	return d
}

// Load reads both JSON tables from disk.
func Load(exchangesPath, companiesPath string) (*Directory, error) {
	var ex exchangesFile
	if err := readJSON(exchangesPath, &ex); err != nil {
		return nil, err
	}
	companies := map[string]models.CountryCompanies{}
	if err := readJSON(companiesPath, &companies); err != nil {
		return nil, err
	}
	return New(ex.Exchanges, companies), nil
}

func readJSON(path string, dest interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (d *Directory) Exchanges() []models.Exchange {
	out := make([]models.Exchange, len(d.exchanges))
	copy(out, d.exchanges)
	return out
}

func (d *Directory) Companies(countryCode string) (models.CountryCompanies, bool) {
	c, ok := d.companies[strings.ToUpper(countryCode)]
	return c, ok
}
