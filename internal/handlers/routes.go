package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers all URL shortener routes.
func RegisterRoutes(api huma.API, urlHandler *URLHandler) {
	create := huma.Operation{
		OperationID: "create-url",
		Method:      http.MethodPost,
		Path:        "/url",
		Summary:     "Create short URL",
		Description: "Registers dest_url and allocates a derived key, or the key given in src_url.",
		Tags:        []string{"URLs"},
	}
	huma.Register(api, create, urlHandler.CreateShortURL)

	// Older clients post to /url/create.
	legacy := create
	legacy.OperationID = "create-url-legacy"
	legacy.Path = "/url/create"
	legacy.Hidden = true
	huma.Register(api, legacy, urlHandler.CreateShortURL)

	huma.Register(api, huma.Operation{
		OperationID: "get-url",
		Method:      http.MethodGet,
		Path:        "/url/{key}",
		Summary:     "Get short URL",
		Tags:        []string{"URLs"},
	}, urlHandler.GetURL)

	huma.Register(api, huma.Operation{
		OperationID: "delete-url",
		Method:      http.MethodDelete,
		Path:        "/url/{key}",
		Summary:     "Delete short URL",
		Description: "Tombstones the key. It stops resolving and is never issued again.",
		Tags:        []string{"URLs"},
	}, urlHandler.DeleteURL)

	huma.Register(api, huma.Operation{
		OperationID: "get-statistics",
		Method:      http.MethodGet,
		Path:        "/stats/{key}",
		Summary:     "Get click statistics",
		Tags:        []string{"Statistics"},
	}, urlHandler.GetStatistics)

	huma.Register(api, huma.Operation{
		OperationID: "get-hits",
		Method:      http.MethodGet,
		Path:        "/stats/{key}/hits",
		Summary:     "List recorded clicks",
		Tags:        []string{"Statistics"},
	}, urlHandler.GetHits)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{key}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the long URL and records a click.",
		Tags:        []string{"URLs"},
	}, urlHandler.RedirectToURL)
}
