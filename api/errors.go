package api

import (
	"errors"
	"net/http"

	"bookstore-catalog/catalog"
)

func (app *Application) logError(r *http.Request, err error) {
	app.logger.Error(err.Error(),
		"method", r.Method,
		"uri", r.URL.RequestURI(),
		"request_id", requestIDFromContext(r.Context()),
	)
}

func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	if err := app.writeJSON(w, status, envelope{"error": message}, nil); err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func (app *Application) storeUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusServiceUnavailable, "the catalog store is currently unavailable, please try again later")
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, "the "+r.Method+" method is not supported for this resource")
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errs map[string]string) {
	app.errorResponse(w, r, http.StatusUnprocessableEntity, errs)
}

func (app *Application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusConflict, err.Error())
}

// catalogErrorResponse maps errors returned by the catalog package onto HTTP
// responses.
func (app *Application) catalogErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		app.failedValidationResponse(w, r, verr.Fields)
	case errors.Is(err, catalog.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, catalog.ErrDuplicateEmail):
		app.conflictResponse(w, r, catalog.ErrDuplicateEmail)
	case errors.Is(err, catalog.ErrStoreUnavailable):
		app.storeUnavailableResponse(w, r, err)
	default:
		app.serverErrorResponse(w, r, err)
	}
}
