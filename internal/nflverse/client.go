// Package nflverse reads play-by-play, roster and next-gen-stats assets from
// the nflverse-data GitHub releases.
package nflverse

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// DefaultBaseURL is the releases API root of the nflverse-data repository.
const DefaultBaseURL = "https://api.github.com/repos/nflverse/nflverse-data/releases/tags"

// ErrNoData is returned when the provider has no usable rows for a season:
// the asset is missing, the download 404s, or filtering leaves nothing.
var ErrNoData = errors.New("nflverse: no data")

// Dataset names accepted by ResolveAsset.
const (
	DatasetPlays   = "pbp"
	DatasetRosters = "rosters"
	DatasetNGS     = "nextgen_stats"
)

// Archiver stores a copy of every downloaded asset.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL string
	Token   string   // GitHub token, raises the API rate limit
	Prefer  []string // asset formats in preference order, e.g. parquet, csv
	Timeout time.Duration
	Archive Archiver
	Logger  *slog.Logger
}

// Client resolves and downloads nflverse release assets.
type Client struct {
	baseURL string
	token   string
	prefer  []string
	http    *http.Client
	archive Archiver
	log     *slog.Logger
}

// NewClient returns a Client configured by opts.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		prefer:  opts.Prefer,
		http:    &http.Client{Timeout: opts.Timeout},
		archive: opts.Archive,
		log:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if len(c.prefer) == 0 {
		c.prefer = []string{"parquet", "csv"}
	}
	if opts.Timeout == 0 {
		c.http.Timeout = 5 * time.Minute
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Asset is one downloadable file of a release.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

// Format returns the preferred-format label matched by the asset name, or "".
func (a Asset) Format() string {
	name := strings.ToLower(a.Name)
	switch {
	case strings.HasSuffix(name, ".parquet"):
		return "parquet"
	case strings.HasSuffix(name, ".csv.gz"), strings.HasSuffix(name, ".csv"):
		return "csv"
	}
	return ""
}

type release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// assetNeedle returns the substring an asset name must contain to belong to
// dataset for season.
func assetNeedle(dataset string, season int) (string, error) {
	switch dataset {
	case DatasetPlays:
		return fmt.Sprintf("play_by_play_%d.", season), nil
	case DatasetRosters:
		return fmt.Sprintf("roster_%d.", season), nil
	case DatasetNGS:
		return "ngs_passing.", nil
	}
	return "", fmt.Errorf("unknown dataset %q", dataset)
}

// ResolveAsset finds the release asset of dataset for season in the most
// preferred available format.
func (c *Client) ResolveAsset(ctx context.Context, dataset string, season int) (Asset, error) {
	return c.resolve(ctx, dataset, season, c.prefer)
}

func (c *Client) resolve(ctx context.Context, dataset string, season int, prefer []string) (Asset, error) {
	needle, err := assetNeedle(dataset, season)
	if err != nil {
		return Asset{}, err
	}
	var rel release
	if err := c.getJSON(ctx, c.baseURL+"/"+dataset, &rel); err != nil {
		return Asset{}, err
	}

	type cand struct {
		Asset
		rank int
	}
	var cands []cand
	for _, a := range rel.Assets {
		if !strings.Contains(strings.ToLower(a.Name), needle) {
			continue
		}
		rank := -1
		for i, f := range prefer {
			if a.Format() == strings.TrimSpace(strings.ToLower(f)) {
				rank = i
				break
			}
		}
		if rank < 0 {
			continue
		}
		cands = append(cands, cand{a, rank})
	}
	if len(cands) == 0 {
		return Asset{}, fmt.Errorf("%s %d: %w", dataset, season, ErrNoData)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank < cands[j].rank
		}
		// plain csv before csv.gz
		return len(cands[i].Name) < len(cands[j].Name)
	})
	return cands[0].Asset, nil
}

// getJSON performs a GET against the releases API and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s: %w", url, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// download fetches asset and archives a copy when an Archiver is configured.
// Archive failures are logged and otherwise ignored.
func (c *Client) download(ctx context.Context, dataset string, season int, a Asset) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "nflmetrics/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", a.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("GET %s: %w", a.URL, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("GET %s: HTTP %d (%s)", a.URL, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.Name, err)
	}
	c.log.Debug("downloaded asset", "dataset", dataset, "season", season, "asset", a.Name,
		"bytes", len(body), "elapsed", time.Since(start).Round(time.Millisecond))

	if c.archive != nil {
		key := fmt.Sprintf("%s/season=%d/%s", dataset, season, a.Name)
		if err := c.archive.Put(ctx, key, body); err != nil {
			c.log.Warn("archive asset failed", "key", key, "err", err)
		}
	}
	return body, nil
}

// fetch resolves and downloads the dataset asset for season.
func (c *Client) fetch(ctx context.Context, dataset string, season int, prefer []string) (Asset, []byte, error) {
	a, err := c.resolve(ctx, dataset, season, prefer)
	if err != nil {
		return Asset{}, nil, err
	}
	body, err := c.download(ctx, dataset, season, a)
	if err != nil {
		return Asset{}, nil, err
	}
	return a, body, nil
}

// Rosters and NGS are small; only their CSV assets are read.
var csvOnly = []string{"csv"}

// csvReader returns a reader over body, transparently un-gzipping .gz assets.
func csvReader(a Asset, body []byte) (io.Reader, error) {
	if strings.HasSuffix(strings.ToLower(a.Name), ".gz") {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", a.Name, err)
		}
		return zr, nil
	}
	return bytes.NewReader(body), nil
}

// Plays returns the regular-season plays of season.
func (c *Client) Plays(ctx context.Context, season int) ([]model.Play, error) {
	a, body, err := c.fetch(ctx, DatasetPlays, season, c.prefer)
	if err != nil {
		return nil, err
	}
	var plays []model.Play
	switch a.Format() {
	case "parquet":
		plays, err = DecodePlaysParquet(body, season)
	default:
		r, rerr := csvReader(a, body)
		if rerr != nil {
			return nil, rerr
		}
		plays, err = DecodePlaysCSV(r, season)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.Name, err)
	}
	if len(plays) == 0 {
		return nil, fmt.Errorf("%s: no regular-season plays: %w", a.Name, ErrNoData)
	}
	return plays, nil
}

// Roster returns the seasonal roster of season.
func (c *Client) Roster(ctx context.Context, season int) ([]model.RosterEntry, error) {
	a, body, err := c.fetch(ctx, DatasetRosters, season, csvOnly)
	if err != nil {
		return nil, err
	}
	r, err := csvReader(a, body)
	if err != nil {
		return nil, err
	}
	return DecodeRoster(r)
}

// NGSPassing returns the regular-season next-gen-stats passing rows of season.
func (c *Client) NGSPassing(ctx context.Context, season int) ([]model.NGSPassing, error) {
	a, body, err := c.fetch(ctx, DatasetNGS, season, csvOnly)
	if err != nil {
		return nil, err
	}
	r, err := csvReader(a, body)
	if err != nil {
		return nil, err
	}
	rows, err := DecodeNGSPassing(r, season)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ngs passing %d: %w", season, ErrNoData)
	}
	return rows, nil
}
