package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/practable/livehub/internal/store"
	log "github.com/sirupsen/logrus"
)

type orderReply struct {
	OK    bool        `json:"ok"`
	Order store.Order `json:"order"`
}

type ordersReply struct {
	OK     bool          `json:"ok"`
	Orders []store.Order `json:"orders"`
}

func orderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// writeStoreError maps store errors onto http status codes
func writeStoreError(w http.ResponseWriter, err error) {

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, store.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithField("error", err.Error()).Error("Order store error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

/* Checkout

curl -X POST -b cookies.txt -H "Content-Type: application/json" \
-d '{"shipping_name":"Sari","items":[{"product":"scarf","qty":2,"price":15000}]}' \
http://localhost:3030/api/orders

*/
func (app *App) handleOrderCreate(w http.ResponseWriter, r *http.Request) {

	u := app.user(w, r)
	if u == nil {
		return
	}

	var in store.OrderInput

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	o, err := app.Store.CreateOrder(r.Context(), u.ID, in)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderReply{OK: true, Order: o})
}

// Owner or admin only
// curl -b cookies.txt http://localhost:3030/api/orders/1
func (app *App) handleOrderShow(w http.ResponseWriter, r *http.Request) {

	u := app.user(w, r)
	if u == nil {
		return
	}

	id, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad order id")
		return
	}

	o, err := app.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if o.UserID != u.ID && !u.IsAdmin() {
		writeError(w, http.StatusForbidden, "not your order")
		return
	}

	writeJSON(w, http.StatusOK, orderReply{OK: true, Order: o})
}

// Soft delete, owner or admin only
// curl -X DELETE -b cookies.txt http://localhost:3030/api/orders/1
func (app *App) handleOrderDelete(w http.ResponseWriter, r *http.Request) {

	u := app.user(w, r)
	if u == nil {
		return
	}

	id, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad order id")
		return
	}

	o, err := app.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if o.UserID != u.ID && !u.IsAdmin() {
		writeError(w, http.StatusForbidden, "not your order")
		return
	}

	if err := app.Store.DeleteOrder(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// curl -H "Authorization: Bearer $TOKEN" http://localhost:3030/api/admin/orders?deleted=true
func (app *App) handleAdminOrderList(w http.ResponseWriter, r *http.Request) {

	if app.admin(w, r) == nil {
		return
	}

	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("deleted"))

	orders, err := app.Store.ListOrders(r.Context(), includeDeleted)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ordersReply{OK: true, Orders: orders})
}

// curl -X PATCH -H "Authorization: Bearer $TOKEN" -d '{"delivery_fee":9000,"status":"paid"}' http://localhost:3030/api/admin/orders/1
func (app *App) handleAdminOrderPatch(w http.ResponseWriter, r *http.Request) {

	if app.admin(w, r) == nil {
		return
	}

	id, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad order id")
		return
	}

	var p store.OrderPatch

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	o, err := app.Store.PatchOrder(r.Context(), id, p)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderReply{OK: true, Order: o})
}
