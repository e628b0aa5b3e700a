// Package httpapi exposes the raffle engine over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	app "github.com/openraffle/raffle_layer/internal/app"
	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/metrics"
	rafflesvc "github.com/openraffle/raffle_layer/internal/app/services/raffle"
)

// Config carries the HTTP surface settings.
type Config struct {
	// AuthToken guards the API when non-empty; requests must carry it as a
	// bearer token. Health and metrics stay open.
	AuthToken string
	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the raffle REST API.
func NewHandler(application *app.Application, cfg Config) http.Handler {
	h := &handler{app: application}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.AuthToken != "" {
			r.Use(requireBearer(cfg.AuthToken))
		}
		if cfg.RateLimit > 0 {
			r.Use(rateLimit(cfg.RateLimit, cfg.RateBurst))
		}

		r.Route("/raffles", func(r chi.Router) {
			r.Post("/", h.createRaffle)
			r.Get("/", h.listRaffles)
			r.Route("/{raffleID}", func(r chi.Router) {
				r.Get("/", h.getRaffle)
				r.Post("/cancel", h.cancelRaffle)
				r.Get("/prizes", h.listPrizes)
				r.Post("/prizes", h.addPoolPrize)
				r.Get("/prizes/{index}/winner", h.winner)
				r.Post("/prizes/{index}/claim", h.claimPrize)
				r.Post("/tickets", h.buyTickets)
				r.Get("/tickets/{number}", h.ticketOwner)
				r.Get("/batches", h.listBatches)
				r.Post("/seed", h.initializeSeed)
				r.Get("/sales", h.sales)
				r.Post("/sales/claims", h.claimSales)
			})
		})
	})

	return metrics.InstrumentHandler(r)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createRaffle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Creator         string             `json:"creator"`
		PrizeCollection string             `json:"prize_collection"`
		PrizeInstance   string             `json:"prize_instance"`
		PaymentAsset    string             `json:"payment_asset"`
		TicketPrice     uint64             `json:"ticket_price"`
		MinTickets      uint64             `json:"min_tickets"`
		StartTime       time.Time          `json:"start_time"`
		EndTime         time.Time          `json:"end_time"`
		Pool            []domain.PoolEntry `json:"pool"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Raffles.CreateRaffle(r.Context(), rafflesvc.CreateParams{
		Creator:         payload.Creator,
		PrizeCollection: payload.PrizeCollection,
		PrizeInstance:   payload.PrizeInstance,
		PaymentAsset:    payload.PaymentAsset,
		TicketPrice:     payload.TicketPrice,
		MinTickets:      payload.MinTickets,
		StartTime:       payload.StartTime,
		EndTime:         payload.EndTime,
		Pool:            payload.Pool,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := h.app.Raffles.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, raffles)
}

func (h *handler) getRaffle(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Raffles.Get(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) cancelRaffle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Raffles.CancelRaffle(r.Context(), chi.URLParam(r, "raffleID"), payload.Caller); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listPrizes(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Raffles.Get(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Prizes)
}

func (h *handler) addPoolPrize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Contributor string `json:"contributor"`
		Collection  string `json:"collection"`
		Instance    string `json:"instance"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Raffles.AddPoolPrize(r.Context(), chi.URLParam(r, "raffleID"), payload.Contributor, payload.Collection, payload.Instance)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (h *handler) buyTickets(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Buyer  string `json:"buyer"`
		Count  uint64 `json:"count"`
		Native bool   `json:"native"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	raffleID := chi.URLParam(r, "raffleID")
	var (
		batch domain.TicketBatch
		err   error
	)
	if payload.Native {
		batch, err = h.app.Raffles.BuyTicketsNative(r.Context(), raffleID, payload.Buyer, payload.Count)
	} else {
		batch, err = h.app.Raffles.BuyTickets(r.Context(), raffleID, payload.Buyer, payload.Count)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

func (h *handler) listBatches(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Raffles.Get(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Batches)
}

func (h *handler) ticketOwner(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, index, err := h.app.Raffles.OwnerAt(r.Context(), chi.URLParam(r, "raffleID"), number)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":         number,
		"owner":          owner,
		"purchase_index": index,
	})
}

func (h *handler) initializeSeed(w http.ResponseWriter, r *http.Request) {
	updated, err := h.app.Raffles.InitializeSeed(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) winner(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := h.app.Raffles.Winner(r.Context(), chi.URLParam(r, "raffleID"), index)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) claimPrize(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var payload struct {
		Claimant      string `json:"claimant"`
		PurchaseIndex int    `json:"purchase_index"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	prize, err := h.app.Raffles.ClaimPrize(r.Context(), chi.URLParam(r, "raffleID"), index, payload.Claimant, payload.PurchaseIndex)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, prize)
}

func (h *handler) sales(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")
	breakdown, err := h.app.Raffles.Sales(r.Context(), raffleID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	account := r.URL.Query().Get("account")
	if account == "" {
		writeJSON(w, http.StatusOK, breakdown)
		return
	}
	share, err := h.app.Raffles.ShareOf(r.Context(), raffleID, account)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_sales":      breakdown.TotalSales,
		"minimum_sales":    breakdown.MinimumSales,
		"royalty_amount":   breakdown.RoyaltyAmount,
		"claimable_amount": breakdown.ClaimableAmount,
		"account":          account,
		"share":            share,
	})
}

func (h *handler) claimSales(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Account string `json:"account"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := h.app.Raffles.ClaimSales(r.Context(), chi.URLParam(r, "raffleID"), payload.Account)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": payload.Account,
		"amount":  amount,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNoOp), errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
