package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 2 << 20

type Config struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// OpenFoodFactsClient looks products up in the Open Food Facts v2 API.
// One GET per call, no retries.
type OpenFoodFactsClient struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOpenFoodFactsClient(cfg Config) *OpenFoodFactsClient {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &OpenFoodFactsClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

func (c *OpenFoodFactsClient) Lookup(ctx context.Context, code string, kind model.CodeKind) (*model.ExternalProductRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ErrNotFound
	}

	// Barcode databases do not index produce codes.
	if kind == model.CodeKindPLU {
		if rec, ok := lookupPLU(code); ok {
			return rec, nil
		}
		return nil, apperr.ErrNotFound
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttled: %v", apperr.ErrProviderUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", apperr.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", apperr.ErrProviderUnavailable, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response", apperr.ErrProviderUnavailable)
	}
	doc := gjson.ParseBytes(body)
	product := doc.Get("product")
	if doc.Get("status").Int() != 1 || !product.IsObject() {
		return nil, apperr.ErrNotFound
	}

	return normalize(code, product), nil
}

// normalize maps the loosely structured product document onto a record.
// Every field falls back through the alternative keys the API is known to use.
func normalize(code string, p gjson.Result) *model.ExternalProductRecord {
	return &model.ExternalProductRecord{
		Code:        code,
		Description: firstString(p, "product_name_en", "product_name", "generic_name_en", "generic_name"),
		Brand:       firstBrand(p.Get("brands").String()),
		BrandOwner:  strings.TrimSpace(p.Get("brand_owner").String()),
		Category:    categoryText(p),
		PackageSize: packageSize(p),
		ServingSize: strings.TrimSpace(p.Get("serving_size").String()),
		Nutrients:   nutrients(p.Get("nutriments")),
	}
}

func firstString(p gjson.Result, paths ...string) string {
	for _, path := range paths {
		if s := strings.TrimSpace(p.Get(path).String()); s != "" {
			return s
		}
	}
	return ""
}

func firstBrand(brands string) string {
	for _, b := range strings.Split(brands, ",") {
		if b = strings.TrimSpace(b); b != "" {
			return b
		}
	}
	return ""
}

// categoryText prefers the human readable list; the tag list ("en:whole-milks")
// is turned into words.
func categoryText(p gjson.Result) string {
	if s := strings.TrimSpace(p.Get("categories").String()); s != "" {
		return s
	}
	var parts []string
	p.Get("categories_tags").ForEach(func(_, tag gjson.Result) bool {
		t := tag.String()
		if i := strings.Index(t, ":"); i >= 0 {
			t = t[i+1:]
		}
		if t = strings.ReplaceAll(t, "-", " "); t != "" {
			parts = append(parts, t)
		}
		return true
	})
	return strings.Join(parts, ", ")
}

func packageSize(p gjson.Result) string {
	if s := strings.TrimSpace(p.Get("quantity").String()); s != "" {
		return s
	}
	amount := strings.TrimSpace(p.Get("product_quantity").String())
	if amount == "" {
		return ""
	}
	if unit := strings.TrimSpace(p.Get("product_quantity_unit").String()); unit != "" {
		return amount + " " + unit
	}
	return amount
}

func nutrients(n gjson.Result) []model.Nutrient {
	values := map[string]float64{}
	units := map[string]string{}

	n.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		switch {
		case strings.HasSuffix(key, "_100g"):
			if v.Type == gjson.Number || v.Type == gjson.String {
				values[strings.TrimSuffix(key, "_100g")] = v.Float()
			}
		case strings.HasSuffix(key, "_unit"):
			units[strings.TrimSuffix(key, "_unit")] = v.String()
		}
		return true
	})

	out := make([]model.Nutrient, 0, len(values))
	for name, amount := range values {
		unit := units[name]
		if unit == "" {
			unit = defaultUnit(name)
		}
		out = append(out, model.Nutrient{Name: name, Amount: amount, Unit: unit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func defaultUnit(name string) string {
	switch name {
	case "energy-kcal":
		return "kcal"
	case "energy", "energy-kj":
		return "kJ"
	default:
		return "g"
	}
}
