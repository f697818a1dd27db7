package tradingview

import (
	"context"
	"errors"
	"strings"
	"sync"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	"MarketRelay/internal/service/normalize"
	applogger "MarketRelay/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	exchangeRows       = 100
	defaultParallel    = 5
	defaultScansPerSec = 5
)

// ErrNoExchangeData is returned when no exchange has produced any quote yet.
var ErrNoExchangeData = errors.New("tradingview: no exchange data")

// ExchangesOption configures ExchangesSource.
type ExchangesOption func(*ExchangesSource)

// WithParallel bounds concurrent exchange scans.
func WithParallel(n int) ExchangesOption {
	return func(s *ExchangesSource) { s.parallel = n }
}

// WithScanRate paces scan starts to r per second. Zero disables pacing.
func WithScanRate(r float64) ExchangesOption {
	return func(s *ExchangesSource) { s.scanRate = r }
}

// ExchangesSource scans every international exchange of the reference table,
// keeps whitelisted symbols of the exchange's country and converts prices to
// TRY. Results are kept per exchange across fetches: an exchange that fails
// keeps its previous quotes.
type ExchangesSource struct {
	client   *Client
	ref      drepo.ReferenceData
	rates    drepo.RateProvider
	logger   *applogger.Logger
	parallel int
	scanRate float64
	limiter  *rate.Limiter

	mu   sync.Mutex
	data map[string][]models.Quote
}

func NewExchangesSource(client *Client, ref drepo.ReferenceData, rates drepo.RateProvider, l *applogger.Logger, opts ...ExchangesOption) *ExchangesSource {
	s := &ExchangesSource{
		client:   client,
		ref:      ref,
		rates:    rates,
		logger:   l,
		parallel: defaultParallel,
		scanRate: defaultScansPerSec,
		data:     make(map[string][]models.Quote),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parallel <= 0 {
		s.parallel = defaultParallel
	}
	limit := rate.Inf
	if s.scanRate > 0 {
		limit = rate.Limit(s.scanRate)
	}
	s.limiter = rate.NewLimiter(limit, s.parallel)
	return s
}

func (s *ExchangesSource) Name() string { return "tradingview" }

func (s *ExchangesSource) Fetch(ctx context.Context) ([]models.Quote, error) {
	exchanges := s.ref.Exchanges()
	usdTry := decimal.NewFromFloat(s.rates.USDTRY())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, ex := range exchanges {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			quotes, err := s.fetchExchange(gctx, ex, usdTry)
			if err != nil {
				s.logger.Warn("exchange scan failed",
					applogger.String("exchange", ex.ID),
					applogger.Error(err))
				return nil
			}
			s.mu.Lock()
			s.data[ex.ID] = quotes
			s.mu.Unlock()
			s.logger.Debug("exchange scanned", applogger.String("exchange", ex.ID), applogger.Int("count", len(quotes)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Quote
	for _, ex := range exchanges {
		out = append(out, s.data[ex.ID]...)
	}
	if len(out) == 0 {
		return nil, ErrNoExchangeData
	}
	return normalize.Dedupe(out), nil
}

// Decorate reports how many exchanges hold data.
func (s *ExchangesSource) Decorate(ev *models.MarketEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.Exchanges = len(s.data)
}

func (s *ExchangesSource) fetchExchange(ctx context.Context, ex models.Exchange, usdTry decimal.Decimal) ([]models.Quote, error) {
	rows, err := s.client.Scan(ctx, ExchangeScan(ex.TVExchange, exchangeRows))
	if err != nil {
		return nil, err
	}

	whitelist, ok := s.ref.Companies(ex.CountryCode)
	if !ok {
		return []models.Quote{}, nil
	}

	tmpl := normalize.Template{
		AssetType: models.AssetStock,
		Category:  ex.ID,
		Currency:  ex.Currency,
		Exchange:  ex.ID,
		Country:   ex.Country,
		KeepRaw:   true,
	}

	out := make([]models.Quote, 0, len(rows))
	for _, row := range rows {
		if !Whitelisted(normalize.Text(row["symbol"]), whitelist.Companies) {
			continue
		}
		q, ok := FieldMap.Quote(row, tmpl)
		if !ok {
			continue
		}
		converted, _ := decimal.NewFromFloat(*q.Price).Mul(usdTry).Round(2).Float64()
		if !models.ValidPrice(converted) {
			continue
		}
		q.Price = models.Float(converted)
		out = append(out, q)
	}
	return out, nil
}

// Whitelisted reports whether the ticker (without exchange prefix) and any
// company entry contain one another, ignoring case.
func Whitelisted(ticker string, companies []string) bool {
	sym := ticker
	if _, bare, found := strings.Cut(ticker, ":"); found {
		sym = bare
	}
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return false
	}
	for _, c := range companies {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if strings.Contains(c, sym) || strings.Contains(sym, c) {
			return true
		}
	}
	return false
}
