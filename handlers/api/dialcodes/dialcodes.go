package dialcodes

import (
	"context"
	"net/http"

	"chatdash/countries"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Lister returns the country directory.
type Lister interface {
	List(ctx context.Context) ([]countries.Country, error)
}

func HandleListCountries(lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := lister.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to fetch countries")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Failed to fetch countries"})
			return
		}
		render.JSON(w, r, list)
	}
}
