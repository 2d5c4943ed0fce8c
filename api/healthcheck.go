package api

import (
	"context"
	"net/http"
	"time"
)

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.sellers.Ping(ctx); err != nil {
		app.storeUnavailableResponse(w, r, err)
		return
	}

	data := envelope{
		"status": "available",
		"system_info": map[string]string{
			"environment": app.env,
			"version":     app.version,
		},
	}
	if err := app.writeJSON(w, http.StatusOK, data, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
