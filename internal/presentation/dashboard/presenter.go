package dashboard

import (
	"embed"
	"errors"
	"html/template"
	"strings"
	"sync"
	"time"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/logger"
	"energy-trading-dashboard/pkg/units"
)

//go:embed templates/*.html
var templateFS embed.FS

// Views the dashboard can show
const (
	ViewOverview     = "overview"
	ViewMarket       = "market"
	ViewTransactions = "transactions"
)

var views = []string{ViewOverview, ViewMarket, ViewTransactions}

// Presenter composes the wallet connector and market sync into the dashboard
// pages. It serves a single local user, like the browser tab it replaces.
type Presenter struct {
	connector service.WalletConnector
	market    service.MarketSync
	templates *template.Template
	logger    *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	view   string
	notice string
	flash  string
}

// pageData is the template model
type pageData struct {
	Connected bool
	Session   service.SessionSnapshot
	View      string
	Views     []string
	Notice    string
	Flash     string
	History   []*entity.TradeEvent
	Summary   summary
}

// summary feeds the overview cards
type summary struct {
	EnergyBalance     float64
	CurrentProduction float64
}

// summarize nets production against consumption over the day and picks the
// production of the given hour
func summarize(points []entity.TelemetryPoint, hour int) summary {
	var sum summary
	for i, p := range points {
		sum.EnergyBalance += p.Production - p.Consumption
		if i == hour {
			sum.CurrentProduction = p.Production
		}
	}
	return sum
}

// NewPresenter creates a new dashboard presenter
func NewPresenter(connector service.WalletConnector, market service.MarketSync, logger *logger.Logger) (*Presenter, error) {
	tmpl, err := template.New("templates").Funcs(template.FuncMap{
		"title":  title,
		"fixed4": fixed4,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Presenter{
		connector: connector,
		market:    market,
		templates: tmpl,
		logger:    logger.WithComponent("dashboard"),
		view:      ViewOverview,
		now:       time.Now,
	}, nil
}

// ActiveView returns the selected tab
func (p *Presenter) ActiveView() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// SetView selects a tab, reporting false for unknown views
func (p *Presenter) SetView(view string) bool {
	for _, v := range views {
		if v == view {
			p.mu.Lock()
			p.view = view
			p.mu.Unlock()
			return true
		}
	}
	return false
}

func (p *Presenter) setNotice(msg string) {
	p.mu.Lock()
	p.notice = msg
	p.mu.Unlock()
}

func (p *Presenter) setFlash(msg string) {
	p.mu.Lock()
	p.flash = msg
	p.mu.Unlock()
}

// takeMessages returns and clears the pending notice and flash
func (p *Presenter) takeMessages() (notice, flash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	notice, flash = p.notice, p.flash
	p.notice, p.flash = "", ""
	return notice, flash
}

// connectNotice is the blocking message shown for a failed wallet connection
func connectNotice(err error) string {
	switch {
	case errors.Is(err, entity.ErrProviderUnavailable):
		return "No wallet provider is available. Configure wallet.provider_url and try again."
	case errors.Is(err, entity.ErrUserRejected):
		return "The wallet declined the connection request."
	default:
		return "Could not connect to the wallet: " + err.Error()
	}
}

// actionFlash is the non-blocking message shown for a failed market action
func actionFlash(action string, err error) string {
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		return action + " failed: check the amounts you entered."
	case errors.Is(err, entity.ErrNotFound):
		return action + " failed: listing not found."
	case errors.Is(err, entity.ErrTransactionFailed):
		return action + " failed: the transaction was not confirmed."
	default:
		return action + " failed: " + err.Error()
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fixed4 renders a decimal amount with four fractional digits
func fixed4(amount string) string {
	out, err := units.Round(amount, 4)
	if err != nil {
		return amount
	}
	return out
}
