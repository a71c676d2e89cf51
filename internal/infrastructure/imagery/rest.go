package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
)

// HTTPCatalogClient talks to the hosted imagery catalog over JSON. It
// implements repository.ImageryRepository.
type HTTPCatalogClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPCatalogClient(endpoint string, timeout time.Duration) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type catalogRequest struct {
	Collection    string   `json:"collection"`
	BBox          string   `json:"bbox"`
	Mode          string   `json:"mode,omitempty"`
	OrbitPass     string   `json:"orbit_pass,omitempty"`
	RelativeOrbit *int     `json:"relative_orbit,omitempty"`
	MaxCloudPct   *float64 `json:"max_cloud_pct,omitempty"`
	Band          string   `json:"band,omitempty"`
	DateStart     string   `json:"date_start"`
	DateEnd       string   `json:"date_end"`
}

type catalogRaster struct {
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	BBox      string    `json:"bbox"`
	Values    []float64 `json:"values"`
	Valid     []bool    `json:"valid"`
}

type catalogResponse struct {
	Items []catalogRaster `json:"items"`
}

// QueryRasters retrieves the acquisitions matching the query, ordered by
// acquisition time.
func (c *HTTPCatalogClient) QueryRasters(ctx context.Context, q repository.RasterQuery) (*model.RasterStack, error) {
	reqBody := catalogRequest{
		Collection:    q.CollectionID,
		BBox:          q.AOI.Bounds().String(),
		Mode:          q.Filters.Mode,
		OrbitPass:     q.Filters.OrbitPass,
		RelativeOrbit: q.Filters.RelativeOrbit,
		MaxCloudPct:   q.Filters.MaxCloudPct,
		Band:          q.Filters.Band,
		DateStart:     q.Filters.Dates.Start.Format(time.RFC3339),
		DateEnd:       q.Filters.Dates.End.Format(time.RFC3339),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status: %d", resp.StatusCode)
	}

	var catResp catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catResp); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	stack := &model.RasterStack{}
	for _, item := range catResp.Items {
		grid, err := rasterToGrid(item)
		if err != nil {
			return nil, err
		}
		stack.Items = append(stack.Items, model.RasterItem{
			Timestamp: item.Timestamp,
			Grid:      grid,
		})
	}

	sort.Slice(stack.Items, func(i, j int) bool {
		return stack.Items[i].Timestamp.Before(stack.Items[j].Timestamp)
	})

	return stack, nil
}

func rasterToGrid(item catalogRaster) (*model.Grid, error) {
	bounds, err := model.ParseBounds(item.BBox)
	if err != nil {
		return nil, fmt.Errorf("catalog raster has invalid bbox: %w", err)
	}
	size := item.Width * item.Height
	if len(item.Values) != size || len(item.Valid) != size {
		return nil, fmt.Errorf("catalog raster size mismatch: %dx%d with %d values",
			item.Width, item.Height, len(item.Values))
	}
	grid := model.NewGrid(bounds, item.Width, item.Height)
	copy(grid.Values, item.Values)
	copy(grid.Valid, item.Valid)
	return grid, nil
}
