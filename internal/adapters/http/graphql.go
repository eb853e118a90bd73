package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/grid"
	"github.com/fobi-id/obsmap/internal/core/lod"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CellBounds",
		Fields: graphql.Fields{
			"southWest": &graphql.Field{Type: geoPointType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.CellBounds).SouthWest, nil
			}},
			"northEast": &graphql.Field{Type: geoPointType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.CellBounds).NorthEast, nil
			}},
		},
	})

	sourceCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SourceCount",
		Fields: graphql.Fields{
			"source": &graphql.Field{Type: graphql.String},
			"count":  &graphql.Field{Type: graphql.Int},
		},
	})

	cellType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GridCell",
		Fields: graphql.Fields{
			"bounds": &graphql.Field{Type: boundsType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.GridCell).Bounds, nil
			}},
			"center": &graphql.Field{Type: geoPointType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.GridCell).Center(), nil
			}},
			"count": &graphql.Field{Type: graphql.Int},
			"species": &graphql.Field{Type: graphql.NewList(graphql.String), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return grid.Summarize(p.Source.(domain.GridCell)).Species, nil
			}},
			"bySource": &graphql.Field{Type: graphql.NewList(sourceCountType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				s := grid.Summarize(p.Source.(domain.GridCell))
				out := make([]map[string]interface{}, 0, len(s.BySource))
				for _, src := range domain.Sources {
					if n := s.BySource[src]; n > 0 {
						out = append(out, map[string]interface{}{"source": string(src), "count": n})
					}
				}
				return out, nil
			}},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"source": &graphql.Field{Type: graphql.String},
			"lat": &graphql.Field{Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				lat, _, _ := p.Source.(domain.Observation).Coordinates()
				return lat, nil
			}},
			"lon": &graphql.Field{Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				_, lon, _ := p.Source.(domain.Observation).Coordinates()
				return lon, nil
			}},
			"species": &graphql.Field{Type: graphql.NewList(graphql.String), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.Observation).SpeciesNames(), nil
			}},
		},
	})

	mapViewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapView",
		Fields: graphql.Fields{
			"level":   &graphql.Field{Type: graphql.String},
			"zoom":    &graphql.Field{Type: graphql.Float},
			"total":   &graphql.Field{Type: graphql.Int},
			"cells":   &graphql.Field{Type: graphql.NewList(cellType)},
			"markers": &graphql.Field{Type: graphql.NewList(markerType)},
		},
	})

	bboxArg := &graphql.ArgumentConfig{
		Type:        graphql.String,
		Description: "Viewport as west,south,east,north",
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"gridCells": &graphql.Field{
				Type:        graphql.NewList(cellType),
				Description: "A user's observations aggregated at one grid size",
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"size":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.GridMedium)},
					"source": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"bbox":   bboxArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					size, err := domain.ParseGridSize(p.Args["size"].(string))
					if err != nil {
						return nil, err
					}
					src, err := parseOptionalSource(p.Args["source"].(string))
					if err != nil {
						return nil, err
					}
					bbox, _ := p.Args["bbox"].(string)
					viewport, err := parseBBox(bbox)
					if err != nil {
						return nil, err
					}
					return deps.Observations.Grid(p.Context, p.Args["userId"].(string), src, size, viewport)
				},
			},
			"detailLevel": &graphql.Field{
				Type:        graphql.String,
				Description: "Detail level for a map zoom",
				Args: graphql.FieldConfigArgument{
					"zoom": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					zoom := p.Args["zoom"].(float64)
					if err := validZoom(zoom); err != nil {
						return nil, err
					}
					return string(lod.SelectLevel(zoom)), nil
				},
			},
			"placeName": &graphql.Field{
				Type:        graphql.String,
				Description: "Human-readable place name for a coordinate",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					if !domain.ValidLatitude(lat) || !domain.ValidLongitude(lon) {
						return nil, fmt.Errorf("%w: %v, %v", domain.ErrInvalidCoordinate, lat, lon)
					}
					return deps.Places.Resolve(p.Context, lat, lon), nil
				},
			},
			"mapView": &graphql.Field{
				Type:        mapViewType,
				Description: "Cells or markers to draw for a user at a zoom",
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"zoom":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"source": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"bbox":   bboxArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					zoom := p.Args["zoom"].(float64)
					if err := validZoom(zoom); err != nil {
						return nil, err
					}
					src, err := parseOptionalSource(p.Args["source"].(string))
					if err != nil {
						return nil, err
					}
					bbox, _ := p.Args["bbox"].(string)
					viewport, err := parseBBox(bbox)
					if err != nil {
						return nil, err
					}
					return deps.Observations.MapView(p.Context, p.Args["userId"].(string), src, zoom, viewport)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
