package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/types"
	"go.uber.org/zap"
)

// CatalogService is the slice of the catalog proxy the handlers need.
type CatalogService interface {
	SearchAlbums(ctx context.Context, query string, limit int) ([]types.Album, error)
	GetAlbum(ctx context.Context, id string) (types.AlbumDetail, error)
}

// CatalogHandler proxies album search and detail lookups. Upstream failures
// degrade to empty results so catalog pages render instead of erroring.
type CatalogHandler struct {
	catalog CatalogService
	logger  *zap.Logger
}

// CatalogRouter registers the catalog routes on the given router.
func CatalogRouter(r chi.Router, catalog CatalogService, logger *zap.Logger) {
	h := &CatalogHandler{catalog: catalog, logger: logger}

	r.Get("/spotify/search", h.Search)
	r.Get("/spotify/albums/{albumID}", h.GetAlbum)
}

type albumSearchResponse struct {
	Albums []types.Album `json:"albums"`
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	albums, err := h.catalog.SearchAlbums(r.Context(), q, limit)
	if err != nil {
		h.logger.Warn("catalog search failed, returning empty results",
			zap.String("query", q), zap.Error(err))
		albums = []types.Album{}
	}
	if albums == nil {
		albums = []types.Album{}
	}

	writeJSON(w, http.StatusOK, albumSearchResponse{Albums: albums})
}

func (h *CatalogHandler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumID")

	detail, err := h.catalog.GetAlbum(r.Context(), albumID)
	if err != nil {
		h.logger.Warn("catalog album lookup failed, returning empty detail",
			zap.String("album_id", albumID), zap.Error(err))
		detail = types.AlbumDetail{Album: types.Album{ID: albumID}, Tracks: []types.AlbumTrack{}}
	}
	if detail.Tracks == nil {
		detail.Tracks = []types.AlbumTrack{}
	}

	writeJSON(w, http.StatusOK, detail)
}
