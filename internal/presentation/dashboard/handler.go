package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter registers the dashboard pages, form actions and JSON API
func (p *Presenter) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", p.healthHandler).Methods("GET")

	r.HandleFunc("/", p.index).Methods("GET")
	r.HandleFunc("/connect", p.connect).Methods("POST")
	r.HandleFunc("/logout", p.logout).Methods("POST")
	r.HandleFunc("/view/{tab}", p.selectView).Methods("GET")
	r.HandleFunc("/market/listings", p.listEnergy).Methods("POST")
	r.HandleFunc("/market/listings/{id:[0-9]+}/buy", p.buyEnergy).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", p.getSession).Methods("GET")
	api.HandleFunc("/listings", p.getListings).Methods("GET")
	api.HandleFunc("/telemetry", p.getTelemetry).Methods("GET")
	api.HandleFunc("/history", p.getHistory).Methods("GET")

	return r
}

// Handler wraps the router with access logging and panic recovery
func (p *Presenter) Handler() http.Handler {
	accessLog := zap.NewStdLog(p.logger.Logger.With(zap.String("log", "access"))).Writer()
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(
		handlers.LoggingHandler(accessLog, p.NewRouter()),
	)
}

func (p *Presenter) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (p *Presenter) index(w http.ResponseWriter, r *http.Request) {
	notice, flash := p.takeMessages()
	data := pageData{
		View:   p.ActiveView(),
		Views:  views,
		Notice: notice,
		Flash:  flash,
	}

	snap, ok := p.market.Snapshot()
	if ok {
		data.Connected = true
		data.Session = snap
		data.Summary = summarize(snap.Telemetry, p.now().Hour())
		if data.View == ViewTransactions {
			history, err := p.market.History(r.Context())
			if err != nil {
				data.Flash = actionFlash("Loading history", err)
			}
			data.History = history
		}
	}

	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, "page", data); err != nil {
		p.logger.Error("Failed to render dashboard", zap.Error(err))
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (p *Presenter) connect(w http.ResponseWriter, r *http.Request) {
	session, err := p.connector.Connect(r.Context())
	if err != nil {
		p.logger.Warn("Wallet connection failed", zap.Error(err))
		p.setNotice(connectNotice(err))
		redirectHome(w, r)
		return
	}

	if err := p.market.OnAccountChanged(r.Context(), session); err != nil {
		p.setFlash(actionFlash("Loading the marketplace", err))
	}
	redirectHome(w, r)
}

func (p *Presenter) logout(w http.ResponseWriter, r *http.Request) {
	p.market.Logout()
	p.SetView(ViewOverview)
	redirectHome(w, r)
}

func (p *Presenter) selectView(w http.ResponseWriter, r *http.Request) {
	if !p.SetView(mux.Vars(r)["tab"]) {
		http.NotFound(w, r)
		return
	}
	redirectHome(w, r)
}

func (p *Presenter) listEnergy(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	input := service.ListEnergyInput{
		Amount:     strings.TrimSpace(r.PostFormValue("amount")),
		Price:      strings.TrimSpace(r.PostFormValue("price")),
		EnergyType: strings.TrimSpace(r.PostFormValue("energy_type")),
	}

	if _, err := p.market.ListEnergy(r.Context(), input); err != nil {
		if errors.Is(err, entity.ErrNoSession) {
			redirectHome(w, r)
			return
		}
		p.logger.Error("List energy failed", zap.Error(err))
		p.setFlash(actionFlash("Listing energy", err))
	}

	p.SetView(ViewMarket)
	redirectHome(w, r)
}

func (p *Presenter) buyEnergy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	amount := strings.TrimSpace(r.PostFormValue("amount"))
	p.market.SetBuyInput(id, amount)

	if _, err := p.market.BuyEnergy(r.Context(), service.BuyEnergyInput{ListingID: id, Amount: amount}); err != nil {
		if errors.Is(err, entity.ErrNoSession) {
			redirectHome(w, r)
			return
		}
		p.logger.Error("Buy energy failed", zap.Uint64("listing_id", id), zap.Error(err))
		p.setFlash(actionFlash("Buying energy", err))
	}

	p.SetView(ViewMarket)
	redirectHome(w, r)
}

func (p *Presenter) getSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := p.market.Snapshot()
	if !ok {
		writeError(w, http.StatusUnauthorized, entity.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (p *Presenter) getListings(w http.ResponseWriter, r *http.Request) {
	snap, ok := p.market.Snapshot()
	if !ok {
		writeError(w, http.StatusUnauthorized, entity.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, snap.Listings)
}

func (p *Presenter) getTelemetry(w http.ResponseWriter, r *http.Request) {
	snap, ok := p.market.Snapshot()
	if !ok {
		writeError(w, http.StatusUnauthorized, entity.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, snap.Telemetry)
}

func (p *Presenter) getHistory(w http.ResponseWriter, r *http.Request) {
	events, err := p.market.History(r.Context())
	if err != nil {
		if errors.Is(err, entity.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if events == nil {
		events = []*entity.TradeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
