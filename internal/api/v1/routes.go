// Package v1 provides the source and load handlers of the API.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/flowcraft/plugin-sources/internal/api/common"
	"github.com/flowcraft/plugin-sources/internal/service"
	"github.com/flowcraft/plugin-sources/internal/sources"
)

// TypesResponse lists the registered source types
type TypesResponse struct {
	Types []sources.Type `json:"types"`
}

// Routes holds the handlers of the v1 API
type Routes struct {
	service service.SourceService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.SourceService) *Routes {
	return &Routes{service: svc}
}

// Router creates the v1 router
func Router(svc service.SourceService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/types", routes.listTypes)
	r.Get("/sources", routes.listSources)
	r.Get("/sources/{name}", routes.getSource)
	r.Post("/sources/{name}/load", routes.loadSource)
	r.Post("/load", routes.load)

	return r
}

func (rr *Routes) listTypes(w http.ResponseWriter, r *http.Request) {
	common.WriteJSONResponse(w, TypesResponse{Types: rr.service.ListTypes(r.Context())}, http.StatusOK)
}

// listSources handles GET /v1/sources?name=<glob>&exclude=<glob>&type=<tag>&package=<name>.
// Every parameter may be repeated.
func (rr *Routes) listSources(w http.ResponseWriter, r *http.Request) {
	opts := filterOptions[service.ListSourcesOptions](r.URL.Query())
	views, err := rr.service.ListSources(r.Context(), opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.WriteJSONResponse(w, views, http.StatusOK)
}

func (rr *Routes) getSource(w http.ResponseWriter, r *http.Request) {
	name, err := common.PathParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := rr.service.GetSource(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.WriteJSONResponse(w, view, http.StatusOK)
}

func (rr *Routes) loadSource(w http.ResponseWriter, r *http.Request) {
	name, err := common.PathParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rr.runLoad(w, r, service.WithName(name))
}

// load handles POST /v1/load with the same filter parameters as listSources
func (rr *Routes) load(w http.ResponseWriter, r *http.Request) {
	rr.runLoad(w, r, filterOptions[service.LoadSourcesOptions](r.URL.Query())...)
}

// runLoad answers 200 when every module loaded and 207 otherwise
func (rr *Routes) runLoad(w http.ResponseWriter, r *http.Request, opts ...service.Option[service.LoadSourcesOptions]) {
	report, err := rr.service.LoadSources(r.Context(), opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if report.Failed() {
		status = http.StatusMultiStatus
	}
	common.WriteJSONResponse(w, report, status)
}

func filterOptions[T service.ListSourcesOptions | service.LoadSourcesOptions](q url.Values) []service.Option[T] {
	var opts []service.Option[T]
	if v := q["name"]; len(v) > 0 {
		opts = append(opts, service.WithNamePatterns[T](v...))
	}
	if v := q["exclude"]; len(v) > 0 {
		opts = append(opts, service.WithExcludedNamePatterns[T](v...))
	}
	if v := q["type"]; len(v) > 0 {
		opts = append(opts, service.WithTypes[T](v...))
	}
	if v := q["package"]; len(v) > 0 {
		opts = append(opts, service.WithPackages[T](v...))
	}
	return opts
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSourceNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidSource), errors.Is(err, service.ErrInvalidFilter):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Request failed", "error", err)
		common.WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}
