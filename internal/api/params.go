package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cohortaudit/internal/analytics"
	"cohortaudit/internal/config"
	"cohortaudit/internal/services"
)

// ParamsFromConfig seeds request parameters from the [analysis] section.
// Zero iteration limits and tolerances keep the clusterer defaults.
func ParamsFromConfig(cfg config.Analysis) analytics.Params {
	params := analytics.DefaultParams()
	params.NClusters = cfg.NClusters
	params.SmoothWindow = cfg.SmoothWindow
	params.Alpha = cfg.Alpha
	params.LengthMode = cfg.LengthMode
	params.MaxIndividualCurves = cfg.MaxIndividualCurves
	params.MaxCurvePoints = cfg.MaxCurvePoints
	params.BaselineMethod = cfg.BaselineMethod
	params.Seed = cfg.Seed
	if cfg.MaxIterations > 0 {
		params.MaxIterations = cfg.MaxIterations
	}
	if cfg.Tolerance > 0 {
		params.Tolerance = cfg.Tolerance
	}
	return params.Normalize()
}

// ApplyQuery overrides params with any recognised query values. Unknown keys
// are ignored; malformed numbers are invalid parameters.
func ApplyQuery(params analytics.Params, query url.Values) (analytics.Params, error) {
	var err error
	intField := func(key string, dst *int) {
		raw, ok := lookup(query, key)
		if !ok || err != nil {
			return
		}
		v, perr := strconv.Atoi(raw)
		if perr != nil {
			err = invalidQuery(key, raw, "an integer")
			return
		}
		*dst = v
	}
	floatField := func(key string, dst *float64) {
		raw, ok := lookup(query, key)
		if !ok || err != nil {
			return
		}
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			err = invalidQuery(key, raw, "a number")
			return
		}
		*dst = v
	}
	stringField := func(key string, dst *string) {
		if raw, ok := lookup(query, key); ok && err == nil {
			*dst = raw
		}
	}

	intField("n_clusters", &params.NClusters)
	intField("smooth_window", &params.SmoothWindow)
	floatField("alpha", &params.Alpha)
	stringField("length_mode", &params.LengthMode)
	intField("max_individual_curves", &params.MaxIndividualCurves)
	intField("max_curve_points", &params.MaxCurvePoints)
	stringField("baseline_method", &params.BaselineMethod)
	if raw, ok := lookup(query, "seed"); ok && err == nil {
		v, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			err = invalidQuery("seed", raw, "a non-negative integer")
		} else {
			params.Seed = v
		}
	}
	if err != nil {
		return params, err
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// Key renders params canonically so identical requests share one computation.
func Key(params analytics.Params) string {
	p := params.Normalize()
	return fmt.Sprintf("k=%d|w=%d|a=%s|l=%s|mi=%d|mp=%d|b=%s|s=%d|it=%d|tol=%s",
		p.NClusters, p.SmoothWindow, strconv.FormatFloat(p.Alpha, 'g', -1, 64), p.LengthMode,
		p.MaxIndividualCurves, p.MaxCurvePoints, p.BaselineMethod, p.Seed,
		p.MaxIterations, strconv.FormatFloat(p.Tolerance, 'g', -1, 64))
}

func lookup(query url.Values, key string) (string, bool) {
	values, ok := query[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	raw := strings.TrimSpace(values[0])
	if raw == "" {
		return "", false
	}
	return raw, true
}

func invalidQuery(key, raw, want string) error {
	return services.Wrap(services.ErrInvalidParameter, "params", key, fmt.Sprintf("%q is not %s", raw, want), nil)
}
