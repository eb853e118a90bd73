package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/grid"
	"github.com/fobi-id/obsmap/internal/core/lod"
	"github.com/fobi-id/obsmap/internal/pkg/metrics"
)

// cellJSON is a grid cell as served over REST. Members are only included
// on request since a coarse cell can hold thousands of observations.
type cellJSON struct {
	Bounds  domain.CellBounds    `json:"bounds"`
	Center  domain.GeoPoint      `json:"center"`
	Count   int                  `json:"count"`
	Summary domain.CellSummary   `json:"summary"`
	Members []domain.Observation `json:"members,omitempty"`
}

func toCellJSON(cells []domain.GridCell, withMembers bool) []cellJSON {
	out := make([]cellJSON, 0, len(cells))
	for _, c := range cells {
		cj := cellJSON{
			Bounds:  c.Bounds,
			Center:  c.Center(),
			Count:   c.Count,
			Summary: grid.Summarize(c),
		}
		if withMembers {
			cj.Members = c.Members
		}
		out = append(out, cj)
	}
	return out
}

// ListObservationsHandler returns a user's observations, paginated.
func ListObservationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("id")
		src, err := parseOptionalSource(c.Query("source"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		obs, err := deps.Observations.ListByUser(c.UserContext(), userID, src)
		if err != nil {
			return errFromService(c, err)
		}

		offset, limit := pageParams(c, 100, 500)
		page, pg := paginate(obs, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// ObservationCountsHandler returns stored observation counts per source.
func ObservationCountsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := deps.Observations.Counts(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		return c.JSON(fiber.Map{"user_id": c.Params("id"), "by_source": counts, "total": total})
	}
}

// GridHandler returns a user's observations aggregated at one grid size,
// as JSON cells or a GeoJSON FeatureCollection.
//
//	GET /v1/users/:id/grid?level=small&format=geojson&bbox=110,-8,111,-7
func GridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		size, err := domain.ParseGridSize(c.Query("level", string(domain.GridMedium)))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		src, err := parseOptionalSource(c.Query("source"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		viewport, err := parseBBox(c.Query("bbox"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		cells, err := deps.Observations.Grid(c.UserContext(), c.Params("id"), src, size, viewport)
		if err != nil {
			return errFromService(c, err)
		}

		switch strings.ToLower(c.Query("format", "json")) {
		case "geojson":
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.JSON(grid.FeatureCollection(cells))
		case "json":
			return c.JSON(fiber.Map{
				"level": size,
				"cells": toCellJSON(cells, c.QueryBool("members", false)),
			})
		default:
			return errBadRequest(c, "format must be json or geojson")
		}
	}
}

// MarkersHandler returns a user's located observations as GeoJSON points.
func MarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		src, err := parseOptionalSource(c.Query("source"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		viewport, err := parseBBox(c.Query("bbox"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		obs, err := deps.Observations.ListByUser(c.UserContext(), c.Params("id"), src)
		if err != nil {
			return errFromService(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.JSON(grid.MarkerCollection(grid.MarkersInViewport(obs, viewport)))
	}
}

// LODHandler maps a zoom to its detail level.
func LODHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, err := queryFloat(c, "zoom")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := validZoom(zoom); err != nil {
			return errBadRequest(c, err.Error())
		}

		level := lod.SelectLevel(zoom)
		metrics.DetailLevelSelections.WithLabelValues(string(level)).Inc()
		resp := fiber.Map{"zoom": zoom, "level": level, "markers": lod.ShowsMarkers(level)}
		if size, ok := level.GridSize(); ok {
			resp["grid_size"] = size
			resp["cell_degrees"] = size.Degrees()
		}
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(resp)
	}
}

// ReverseGeocodeHandler resolves a coordinate with the process-wide resolver.
// Lookup failures still answer 200 with the coordinate fallback name, marked
// as a fallback and not cacheable so a later request retries the lookup.
func ReverseGeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		name, resolved := deps.Places.Lookup(c.UserContext(), lat, lon)
		if !resolved {
			c.Set(fiber.HeaderCacheControl, "no-store")
		}
		return c.JSON(fiber.Map{"lat": lat, "lon": lon, "name": name, "fallback": !resolved})
	}
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
}

// CreateSessionHandler opens a map session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.UserID) == "" {
			return errBadRequest(c, "user_id is required")
		}
		src, err := parseOptionalSource(req.Source)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		info, err := deps.Sessions.Create(c.UserContext(), req.UserID, src)
		if err != nil {
			return errFromService(c, err)
		}
		c.Location("/v1/sessions/" + info.ID)
		return c.Status(fiber.StatusCreated).JSON(info)
	}
}

// GetSessionHandler returns a session's state.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(info)
	}
}

type zoomRequest struct {
	Zoom *float64  `json:"zoom"`
	BBox []float64 `json:"bbox"`
}

// ZoomSessionHandler applies a settled zoom to a session and returns the
// view to draw.
func ZoomSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req zoomRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Zoom == nil {
			return errBadRequest(c, "zoom is required")
		}
		if err := validZoom(*req.Zoom); err != nil {
			return errBadRequest(c, err.Error())
		}
		var viewport *domain.Bounds
		if req.BBox != nil {
			b, err := boundsFromSlice(req.BBox)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			viewport = b
		}

		view, err := deps.Sessions.ApplyZoom(c.UserContext(), c.Params("id"), *req.Zoom, viewport)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// SessionViewHandler returns the current view of a session.
func SessionViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Sessions.View(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(view)
	}
}

// SessionPlaceHandler resolves a popup coordinate through the session cache.
func SessionPlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		name, err := deps.Sessions.Resolve(c.UserContext(), c.Params("id"), lat, lon)
		if err != nil {
			return errFromService(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{"lat": lat, "lon": lon, "name": name})
	}
}

// CloseSessionHandler discards a session and its place-name cache.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
