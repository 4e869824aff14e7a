// Package search implements fuzzy make/model resolution and preference
// queries over the vehicle catalog.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yokharian/catalog-engine/internal/cache"
	"github.com/yokharian/catalog-engine/internal/normalize"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/storage"
)

// DefaultUniverseTTL bounds how stale a cached make/model universe may get
// when invalidation is missed.
const DefaultUniverseTTL = 5 * time.Minute

// Planner executes preference searches against the catalog store.
type Planner struct {
	logger  *observability.Logger
	store   storage.Store
	cache   cache.Client
	matcher *Matcher
	config  PlannerConfig
}

// PlannerConfig holds planner configuration.
type PlannerConfig struct {
	Threshold   float64
	UniverseTTL time.Duration
}

// NewPlanner creates a new search planner. The cache is optional; without it
// every search reads the distinct universes from the store.
func NewPlanner(logger *observability.Logger, store storage.Store, cacheClient cache.Client, cfg PlannerConfig) *Planner {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if cfg.UniverseTTL <= 0 {
		cfg.UniverseTTL = DefaultUniverseTTL
	}

	return &Planner{
		logger:  logger,
		store:   store,
		cache:   cacheClient,
		matcher: NewMatcher(cfg.Threshold),
		config:  cfg,
	}
}

// Search runs one preference query and returns at most prefs.Limit()
// vehicles. No match at any stage is an empty result, never an error; errors
// are reserved for store failures.
func (p *Planner) Search(ctx context.Context, prefs Preferences) ([]storage.Vehicle, error) {
	resolved, ok, err := p.resolveNames(ctx, prefs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	// The store filter carries no limit: feature post-filtering happens after
	// the query, so truncating early could starve the final result.
	filter := storage.Filter{
		MinPrice: prefs.BudgetMin,
		MaxPrice: prefs.BudgetMax,
		MaxKM:    prefs.KMMax,
		MinYear:  prefs.YearMin,
		MaxYear:  prefs.YearMax,
	}
	if resolved.make != "" {
		filter.Make = &resolved.make
	}
	if resolved.model != "" {
		filter.Model = &resolved.model
	}

	vehicles, err := p.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	if len(prefs.Features) > 0 {
		vehicles = filterByFeatures(vehicles, prefs.Features)
	}

	sortVehicles(vehicles, prefs.SortBy)

	limit := prefs.Limit()
	if len(vehicles) > limit {
		vehicles = vehicles[:limit]
	}

	p.logger.WithContext(ctx).Debug().
		Str("make", resolved.make).
		Str("model", resolved.model).
		Str("sort_by", string(prefs.SortBy)).
		Int("results", len(vehicles)).
		Msg("Search executed")

	return vehicles, nil
}

// Makes lists the catalog's distinct makes through the universe cache.
func (p *Planner) Makes(ctx context.Context) ([]string, error) {
	return p.universe(ctx, storage.DistinctMake, "")
}

// Models lists the catalog's distinct models through the universe cache,
// optionally scoped to one make.
func (p *Planner) Models(ctx context.Context, scopeMake string) ([]string, error) {
	return p.universe(ctx, storage.DistinctModel, normalize.Text(scopeMake))
}

// resolvedNames is the outcome of fuzzy make/model resolution.
type resolvedNames struct {
	make  string
	model string
}

// resolveNames fuzzy-resolves the free-text make and model against the
// catalog universes. ok=false means a requested name matched nothing and the
// search must return empty instead of silently dropping the filter.
//
// When the make slot matches no known make and no model was given, the text
// is retried against the model universe: feeds and users routinely put the
// model where the make belongs ("touareg" rather than "volkswagen touareg").
func (p *Planner) resolveNames(ctx context.Context, prefs Preferences) (resolvedNames, bool, error) {
	var resolved resolvedNames
	hasMake := strings.TrimSpace(prefs.Make) != ""
	hasModel := strings.TrimSpace(prefs.Model) != ""
	if !hasMake && !hasModel {
		return resolved, true, nil
	}

	if hasMake {
		makes, err := p.universe(ctx, storage.DistinctMake, "")
		if err != nil {
			return resolved, false, err
		}
		mk, score, found := p.matcher.Resolve(prefs.Make, makes)
		if found {
			p.logger.WithContext(ctx).Debug().
				Str("input", prefs.Make).
				Str("resolved", mk).
				Float64("score", score).
				Msg("Resolved make")
			resolved.make = mk

			if hasModel {
				models, err := p.universe(ctx, storage.DistinctModel, mk)
				if err != nil {
					return resolved, false, err
				}
				model, _, found := p.matcher.Resolve(prefs.Model, models)
				if !found {
					return resolvedNames{}, false, nil
				}
				resolved.model = model
			}
			return resolved, true, nil
		}

		if !hasModel {
			models, err := p.universe(ctx, storage.DistinctModel, "")
			if err != nil {
				return resolved, false, err
			}
			if model, score, found := p.matcher.Resolve(prefs.Make, models); found {
				p.logger.WithContext(ctx).Debug().
					Str("input", prefs.Make).
					Str("resolved", model).
					Float64("score", score).
					Msg("Resolved make input as model")
				return resolvedNames{model: model}, true, nil
			}
		}
		return resolvedNames{}, false, nil
	}

	models, err := p.universe(ctx, storage.DistinctModel, "")
	if err != nil {
		return resolved, false, err
	}
	model, _, found := p.matcher.Resolve(prefs.Model, models)
	if !found {
		return resolvedNames{}, false, nil
	}
	resolved.model = model
	return resolved, true, nil
}

// universe reads a distinct-values universe through the cache.
func (p *Planner) universe(ctx context.Context, field storage.DistinctField, scope string) ([]string, error) {
	key := cache.DistinctValuesKey(string(field), scope)

	if p.cache != nil {
		data, err := p.cache.Get(ctx, key)
		switch {
		case err == nil:
			var values []string
			if jsonErr := json.Unmarshal(data, &values); jsonErr == nil {
				return values, nil
			}
			// Corrupt entry, fall through to the store.
		case !errors.Is(err, cache.ErrCacheMiss):
			p.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
	}

	values, err := p.store.DistinctValues(ctx, field, scope)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}

	if p.cache != nil {
		if data, err := json.Marshal(values); err == nil {
			if setErr := p.cache.Set(ctx, key, data, p.config.UniverseTTL); setErr != nil {
				p.logger.Warn().Err(setErr).Str("key", key).Msg("Cache write failed")
			}
		}
	}
	return values, nil
}

// filterByFeatures keeps vehicles carrying every required feature. A feature
// missing from the mapping counts as false.
func filterByFeatures(vehicles []storage.Vehicle, required []string) []storage.Vehicle {
	var out []storage.Vehicle
	for _, v := range vehicles {
		all := true
		for _, feature := range required {
			if !v.HasFeature(feature) {
				all = false
				break
			}
		}
		if all {
			out = append(out, v)
		}
	}
	return out
}

// sortVehicles orders results in place. The default keeps store order, which
// the stores return as ascending stock id; every explicit sort breaks ties by
// stock id for determinism. Unknown sort values keep store order.
func sortVehicles(vehicles []storage.Vehicle, by SortBy) {
	switch by {
	case SortPriceLow:
		sort.Slice(vehicles, func(i, j int) bool {
			if vehicles[i].Price != vehicles[j].Price {
				return vehicles[i].Price < vehicles[j].Price
			}
			return vehicles[i].StockID < vehicles[j].StockID
		})
	case SortPriceHigh:
		sort.Slice(vehicles, func(i, j int) bool {
			if vehicles[i].Price != vehicles[j].Price {
				return vehicles[i].Price > vehicles[j].Price
			}
			return vehicles[i].StockID < vehicles[j].StockID
		})
	case SortYearNew:
		sort.Slice(vehicles, func(i, j int) bool {
			if vehicles[i].Year != vehicles[j].Year {
				return vehicles[i].Year > vehicles[j].Year
			}
			return vehicles[i].StockID < vehicles[j].StockID
		})
	case SortKMLow:
		sort.Slice(vehicles, func(i, j int) bool {
			if vehicles[i].KM != vehicles[j].KM {
				return vehicles[i].KM < vehicles[j].KM
			}
			return vehicles[i].StockID < vehicles[j].StockID
		})
	}
}
