// Package feed fetches GeoJSON feature collections over HTTP or from disk.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/livemap/internal/core/domain"
)

const maxBodyBytes = 64 << 20

// Source implements ports.FeatureSource.
type Source struct {
	client *http.Client
	// root resolves relative file paths.
	root string
}

// NewSource creates a Source. Relative paths are read below root.
func NewSource(timeout time.Duration, root string) *Source {
	return &Source{
		client: &http.Client{Timeout: timeout},
		root:   root,
	}
}

// Fetch downloads or reads the collection at location.
func (s *Source) Fetch(ctx context.Context, location string) ([]domain.Feature, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = s.get(ctx, location)
	} else {
		data, err = s.read(location)
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s *Source) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	// Upstream responses must never be served from an intermediate cache.
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

func (s *Source) read(location string) ([]byte, error) {
	path := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", location, err)
		}
		path = u.Host + u.Path
	}
	if !filepath.IsAbs(path) && s.root != "" {
		path = filepath.Join(s.root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Decode parses a GeoJSON feature collection. Numeric feature ids are
// turned into strings; a missing id becomes "".
func Decode(data []byte) ([]domain.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	features := make([]domain.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		features = append(features, domain.Feature{
			ID:         featureID(f.ID),
			Geometry:   f.Geometry,
			Properties: map[string]any(f.Properties),
		})
	}
	return features, nil
}

func featureID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
