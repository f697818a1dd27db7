package tradingview

import (
	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/service/normalize"
)

// MaxRows caps every published scanner batch.
const MaxRows = 100

// FieldMap covers every scanner preset.
var FieldMap = normalize.FieldMap{
	Symbol:    []string{"symbol"},
	Name:      []string{"description", "name"},
	Price:     []string{"close"},
	Change:    []string{"change_abs", "change"},
	ChangePct: []string{"change"},
	Volume:    []string{"volume"},
	MarketCap: []string{"market_cap_basic", "market_cap_calc"},
	Exchange:  []string{"exchange"},
}

// Preset bundles a scan with its mapping.
type Preset struct {
	Name     string
	Request  ScanRequest
	Popular  []string
	Template normalize.Template
}

var turkish = Options{Lang: "tr"}

func Forex() Preset {
	return Preset{
		Name: "tradingview",
		Request: ScanRequest{
			Filter: []Filter{
				{Left: "type", Operation: "in_range", Right: []string{"forex"}},
				{Left: "exchange", Operation: "in_range", Right: []string{"FX_IDC", "FX"}},
			},
			Options: turkish,
			Range:   [2]int{0, 300},
			Sort:    Sort{SortBy: "name", SortOrder: "asc"},
			Columns: []string{
				"name", "close", "change", "change_abs", "high", "low", "open",
				"description", "type", "subtype", "exchange", "pricescale", "minmov", "fractional",
			},
		},
		Popular: []string{
			"EURUSD", "USDJPY", "GBPUSD", "USDCHF", "AUDUSD", "USDCAD", "NZDUSD", "EURTRY",
			"USDTRY", "GBPTRY", "XAUUSD", "XAGUSD", "EURGBP", "EURJPY", "GBPJPY", "CHFJPY",
		},
		Template: normalize.Template{AssetType: models.AssetForex, Category: "FOREX", KeepRaw: true},
	}
}

func Commodity() Preset {
	return Preset{
		Name: "tradingview",
		Request: ScanRequest{
			Filter: []Filter{
				{Left: "type", Operation: "in_range", Right: []string{"commodity", "futures"}},
			},
			Options: turkish,
			Range:   [2]int{0, 300},
			Sort:    Sort{SortBy: "name", SortOrder: "asc"},
			Columns: []string{
				"name", "close", "change", "change_abs", "high", "low", "open",
				"description", "type", "subtype", "exchange",
			},
		},
		Popular: []string{
			"COMEX:GC1!", "COMEX:SI1!", "NYMEX:CL1!", "NYMEX:NG1!", "TVC:USOIL", "TVC:UKOIL",
			"MCX:GOLD1!", "MCX:SILVER1!", "CBOT:ZC1!", "CBOT:ZW1!", "CBOT:ZS1!", "COMEX:HG1!",
		},
		Template: normalize.Template{AssetType: models.AssetCommodity, Category: "COMMODITY", KeepRaw: true},
	}
}

func Crypto() Preset {
	return Preset{
		Name: "tradingview",
		Request: ScanRequest{
			Filter:  []Filter{{Left: "subtype", Operation: "in_range", Right: []string{"crypto"}}},
			Options: turkish,
			Range:   [2]int{0, 300},
			Sort:    Sort{SortBy: "market_cap_basic", SortOrder: "desc"},
			Columns: []string{
				"name", "close", "change", "change_abs", "high", "low", "open", "volume",
				"market_cap_basic", "description", "type", "subtype", "exchange",
			},
		},
		Template: normalize.Template{AssetType: models.AssetCrypto, Category: "CRYPTO", KeepRaw: true},
	}
}

func BIST() Preset {
	return Preset{
		Name:    "tradingview",
		Request: ExchangeScan("BIST", 150),
		Template: normalize.Template{
			AssetType: models.AssetStock,
			Category:  "BIST",
			Currency:  "TRY",
			KeepRaw:   true,
		},
	}
}

// ExchangeScan lists the largest stocks of one scanner exchange.
func ExchangeScan(exchange string, size int) ScanRequest {
	return ScanRequest{
		Filter: []Filter{
			{Left: "exchange", Operation: "in_range", Right: []string{exchange}},
			{Left: "type", Operation: "in_range", Right: []string{"stock"}},
		},
		Options: turkish,
		Range:   [2]int{0, size},
		Sort:    Sort{SortBy: "market_cap_basic", SortOrder: "desc"},
		Columns: []string{
			"name", "description", "close", "change", "change_abs", "high", "low", "open",
			"market_cap_basic", "volume", "type", "exchange",
		},
	}
}
