package analytics

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cohortaudit/internal/audit"
	"cohortaudit/internal/cohort"
	"cohortaudit/internal/services"
	"cohortaudit/internal/trajectory"
)

const (
	DefaultNClusters           = 4
	DefaultSmoothWindow        = 3
	DefaultAlpha               = 0.90
	DefaultLengthMode          = string(trajectory.LengthTruncate)
	DefaultMaxIndividualCurves = 60
	DefaultMaxCurvePoints      = 60
	DefaultBaselineMethod      = string(audit.RoundHalfEven)
)

// Params holds the request-facing knobs of one analysis run.
type Params struct {
	NClusters           int     `json:"n_clusters" validate:"gte=1"`
	SmoothWindow        int     `json:"smooth_window"`
	Alpha               float64 `json:"alpha" validate:"gt=0,lte=1"`
	LengthMode          string  `json:"length_mode" validate:"oneof=truncate pad error"`
	MaxIndividualCurves int     `json:"max_individual_curves" validate:"gte=0"`
	MaxCurvePoints      int     `json:"max_curve_points" validate:"gte=0"`
	BaselineMethod      string  `json:"baseline_method" validate:"oneof=round ceil floor"`
	Seed                uint64  `json:"seed"`

	MaxIterations int     `json:"-" validate:"gte=0"`
	Tolerance     float64 `json:"-" validate:"gte=0"`
}

// DefaultParams returns the documented request defaults.
func DefaultParams() Params {
	return Params{
		NClusters:           DefaultNClusters,
		SmoothWindow:        DefaultSmoothWindow,
		Alpha:               DefaultAlpha,
		LengthMode:          DefaultLengthMode,
		MaxIndividualCurves: DefaultMaxIndividualCurves,
		MaxCurvePoints:      DefaultMaxCurvePoints,
		BaselineMethod:      DefaultBaselineMethod,
		MaxIterations:       cohort.DefaultMaxIterations,
		Tolerance:           cohort.DefaultTolerance,
	}
}

// Normalize canonicalizes enum spellings.
func (p Params) Normalize() Params {
	p.LengthMode = strings.ToLower(strings.TrimSpace(p.LengthMode))
	p.BaselineMethod = strings.ToLower(strings.TrimSpace(p.BaselineMethod))
	return p
}

var paramsValidate = newParamsValidator()

func newParamsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate reports the first invalid parameter as an ErrInvalidParameter.
func (p Params) Validate() error {
	err := paramsValidate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return services.Wrap(services.ErrInvalidParameter, "params", fe.Field(), describeRule(fe), nil)
	}
	return services.Wrap(services.ErrInvalidParameter, "params", "", "", err)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be >= %s (got %v)", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be > %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s (got %v)", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %q)", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
