package api

import (
	"fmt"
	"net/http"

	"bookstore-catalog/catalog"
)

func (app *Application) createSellerHandler(w http.ResponseWriter, r *http.Request) {
	var input catalog.IncomingSeller
	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seller, err := app.sellers.CreateSeller(r.Context(), input)
	if err != nil {
		app.catalogErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/sellers/%d", seller.ID))

	if err := app.writeJSON(w, http.StatusCreated, seller, headers); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) listSellersHandler(w http.ResponseWriter, r *http.Request) {
	sellers, err := app.sellers.ListSellers(r.Context())
	if err != nil {
		app.catalogErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, sellers, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) showSellerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	seller, err := app.sellers.GetSellerWithBooks(r.Context(), id)
	if err != nil {
		app.catalogErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, seller, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) updateSellerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	var input catalog.UpdatedSeller
	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seller, err := app.sellers.UpdateSeller(r.Context(), id, input)
	if err != nil {
		app.catalogErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, seller, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteSellerHandler always answers 204, also for ids that do not exist.
func (app *Application) deleteSellerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := app.sellers.DeleteSeller(r.Context(), id); err != nil {
		app.catalogErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
