package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dolmen/pos/internal/cart"
	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/service"
	"dolmen/pos/internal/store"
)

func (a *API) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		filter := query.Get("q")
		var (
			items []domain.Item
			err   error
		)
		if query.Get("in_stock") == "true" {
			items, err = a.service.SaleableItems(r.Context(), filter)
		} else {
			items, err = a.service.FindItems(r.Context(), filter)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var in domain.ItemInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.CreateItem(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	default:
		writeMethodNotAllowed(w)
	}
}

type restockRequest struct {
	Quantity     int    `json:"quantity"`
	NewCostPrice string `json:"new_cost_price"`
}

func (a *API) handleItemActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/items/"), "/")
	parts := strings.Split(tail, "/")
	id, err := parseID(parts[0])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if len(parts) == 1 {
		a.handleItem(w, r, id)
		return
	}
	if len(parts) != 2 || r.Method != http.MethodPost {
		if len(parts) == 2 && (parts[1] == "stock" || parts[1] == "restock") {
			writeMethodNotAllowed(w)
			return
		}
		writeError(w, http.StatusNotFound, errors.New("route not found"))
		return
	}

	switch parts[1] {
	case "stock":
		var req domain.StockAdjustment
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.AdjustStock(r.Context(), id, req.Delta)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case "restock":
		var req restockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		record, err := a.service.Restock(r.Context(), domain.RestockRequest{
			ItemID:       id,
			Quantity:     req.Quantity,
			NewCostPrice: req.NewCostPrice,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	default:
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	}
}

func (a *API) handleItem(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		item, err := a.service.GetItem(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		var patch domain.ItemPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateItem(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := a.service.DeleteItem(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

type addToCartRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type cartView struct {
	Lines      []domain.CartLine `json:"lines"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
}

func sessionKey(actor domain.Actor) string {
	if actor.SessionID != "" {
		return actor.SessionID
	}
	return "user:" + actor.Username
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	c := a.carts.Get(sessionKey(actor))

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req addToCartRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if _, err := a.service.AddToCart(r.Context(), c, req.ItemID, req.Quantity); err != nil {
			writeServiceError(w, err)
			return
		}
	case http.MethodDelete:
		if err := a.service.ClearCart(r.Context(), c); err != nil {
			writeServiceError(w, err)
			return
		}
	default:
		writeMethodNotAllowed(w)
		return
	}

	a.writeCart(w, r, c)
}

func (a *API) handleCartLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cart/lines/"), "/")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeServiceError(w, store.Invalid("index", fmt.Sprintf("%q is not a line number", raw)))
		return
	}

	actor, _ := service.ActorFromContext(r.Context())
	c := a.carts.Get(sessionKey(actor))
	if err := a.service.RemoveFromCart(r.Context(), c, index); err != nil {
		writeServiceError(w, err)
		return
	}
	a.writeCart(w, r, c)
}

func (a *API) writeCart(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	lines, total, err := a.service.ViewCart(r.Context(), c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView{Lines: lines, GrandTotal: total})
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	result, err := a.service.Checkout(r.Context(), a.carts.Get(sessionKey(actor)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleReceiptActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/receipts/"), "/")
	receiptID, action, ok := strings.Cut(tail, "/")
	if !ok || action != "reprint" || receiptID == "" {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	path, err := a.service.ReprintReceipt(r.Context(), receiptID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt_id": receiptID, "path": path})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()

	var (
		summary domain.Summary
		title   string
		err     error
	)
	switch window := strings.ToLower(strings.TrimSpace(query.Get("window"))); window {
	case "day", "today":
		title = "Daily sales report"
		summary, err = a.service.DaySummary(r.Context())
	case "month":
		title = "Month-to-date sales report"
		summary, err = a.service.MonthToDate(r.Context())
	case "":
		if query.Get("from") == "" && query.Get("to") == "" {
			title = "Daily sales report"
			summary, err = a.service.DaySummary(r.Context())
			break
		}
		var from, to time.Time
		from, to, err = parseRange(query.Get("from"), query.Get("to"), a.service.Location())
		if err == nil {
			title = "Sales report"
			summary, err = a.service.Summarize(r.Context(), from, to)
		}
	default:
		err = store.Invalid("window", fmt.Sprintf("unknown window %q", window))
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if query.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(summaryToText(title, summary, a.currency)))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()

	from, to := a.service.PurchaseWindow()
	if query.Get("from") != "" || query.Get("to") != "" {
		var err error
		from, to, err = parseRange(query.Get("from"), query.Get("to"), a.service.Location())
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	purchases, err := a.service.ListPurchases(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if limit := parsePositiveLimit(query.Get("limit"), 0); limit > 0 && len(purchases) > limit {
		purchases = purchases[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "purchases": purchases})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stats, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleShopSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profile, err := a.service.ShopProfile(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		var profile domain.ShopProfile
		if err := decodeJSON(r, &profile); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateShopProfile(r.Context(), profile)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeMethodNotAllowed(w)
	}
}

// parseRange reads a half-open [from, to) window. Both bounds accept RFC 3339
// or a bare date in loc; a bare "to" date is inclusive of that whole day.
func parseRange(rawFrom string, rawTo string, loc *time.Location) (time.Time, time.Time, error) {
	from, _, err := parseInstant("from", rawFrom, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, toDate, err := parseInstant("to", rawTo, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if toDate {
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func parseInstant(field string, raw string, loc *time.Location) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, store.Invalid(field, "is required")
	}
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at, false, nil
	}
	if at, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return at, true, nil
	}
	return time.Time{}, false, store.Invalid(field, fmt.Sprintf("%q is not a date", raw))
}

func parsePositiveLimit(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	if n > 500 {
		return 500
	}
	return n
}
