package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/kilianp07/emsdispatch/core/model"
	corerouting "github.com/kilianp07/emsdispatch/core/routing"
)

// DefaultTimeout bounds a single HTTP exchange with the engine. The ranker
// usually applies a shorter deadline through the context.
const DefaultTimeout = 10 * time.Second

// apiError carries the engine answer of a failed request.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// getJSON fetches endpoint and decodes the body into out whatever the status.
// Transport errors are reported as unavailable.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, corerouting.Unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, corerouting.Unavailable(&apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))})
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return resp.StatusCode, corerouting.Unavailable(fmt.Errorf("decode: %w", err))
	}
	return resp.StatusCode, nil
}

// decodePath turns an encoded polyline (precision 5) into coordinates.
func decodePath(encoded string) ([]model.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	path := make([]model.Coordinate, len(coords))
	for i, c := range coords {
		path[i] = model.Coordinate{Lat: c[0], Lon: c[1]}
	}
	return path, nil
}

// encodePath is the inverse of decodePath.
func encodePath(path []model.Coordinate) string {
	coords := make([][]float64, len(path))
	for i, c := range path {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
