package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler proxies catalog searches so that clients never hold the catalog
// credentials.
type Handler struct {
	Source Source
}

func NewHandler(src Source) *Handler {
	return &Handler{Source: src}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/games", h.search)      // GET /catalog/games
	rg.GET("/games/:id", h.details) // GET /catalog/games/:id
	rg.GET("/facets", h.listFacets) // GET /catalog/facets
}

// SpecFromQuery reads a filter spec from URL parameters:
// q, genres, platforms, modes, perspectives (comma separated or repeated),
// rating_min, rating_max, year_from, year_to, sort, dir.
func SpecFromQuery(c *gin.Context) FilterSpec {
	spec := DefaultFilterSpec()
	spec.Query = c.Query("q")
	spec.GenreIDs = intList(c, "genres")
	spec.PlatformIDs = intList(c, "platforms")
	spec.ModeIDs = intList(c, "modes")
	spec.PerspectiveIDs = intList(c, "perspectives")
	spec.Rating.From = parseInt(c.Query("rating_min"), spec.Rating.From)
	spec.Rating.To = parseInt(c.Query("rating_max"), spec.Rating.To)
	spec.Years.From = parseInt(c.Query("year_from"), spec.Years.From)
	spec.Years.To = parseInt(c.Query("year_to"), spec.Years.To)
	if f, ok := ParseSortField(c.Query("sort")); ok {
		spec.Sort = f
	}
	if d, ok := ParseSortDirection(c.Query("dir")); ok {
		spec.Direction = d
	}
	return spec.Normalize()
}

func (h *Handler) search(c *gin.Context) {
	spec := SpecFromQuery(c)
	page := max(parseInt(c.Query("page"), 0), 0)

	games, err := h.Source.Games(c.Request.Context(), BuildSearchQuery(spec, page))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":        page,
		"page_size":   PageSize,
		"end_reached": len(games) < PageSize,
		"items":       games,
	})
}

func (h *Handler) details(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	d, err := h.Source.GameDetails(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) listFacets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": Facets()})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch KindOf(err) {
	case KindNetwork:
		status = http.StatusGatewayTimeout
	case KindAPI:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": Message(err), "kind": KindOf(err).String()})
}

func intList(c *gin.Context, key string) []int {
	var raw []string
	for _, v := range c.QueryArray(key) {
		raw = append(raw, strings.Split(v, ",")...)
	}
	var out []int
	for _, s := range raw {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
