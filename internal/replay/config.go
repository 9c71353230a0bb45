package replay

import (
	"regexp"

	"switchyard/internal/constants"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/schema"
)

// applyDefaults fills the zero values of c with the engine defaults.
func (c *Config) applyDefaults() {
	if c.Options.BatchSize <= 0 {
		c.Options.BatchSize = constants.DefaultReplayBatchSize
	}
	if c.Options.MaxConcurrency <= 0 {
		c.Options.MaxConcurrency = constants.DefaultReplayConcurrency
	}
	if c.Recovery.OnError == "" {
		c.Recovery.OnError = OnErrorSkip
	}
	if c.Recovery.RetryDelayMs <= 0 {
		c.Recovery.RetryDelayMs = int(constants.DefaultReplayRetryDelay.Milliseconds())
	}
	if c.Recovery.BackoffMultiplier < 1 {
		c.Recovery.BackoffMultiplier = constants.DefaultBackoffMultiplier
	}
	if c.Recovery.MaxRetries == nil && c.Recovery.OnError == OnErrorRetry {
		n := constants.DefaultReplayMaxRetries
		c.Recovery.MaxRetries = &n
	}
}

// withOverrides returns a copy of c with every non-nil override section swapped in.
func (c Config) withOverrides(o *Overrides) Config {
	if o == nil {
		return c
	}
	if o.Target != nil {
		c.Target = *o.Target
	}
	if o.TimeRange != nil {
		tr := *o.TimeRange
		c.TimeRange = &tr
	}
	if o.VersionRange != nil {
		vr := *o.VersionRange
		c.VersionRange = &vr
	}
	if o.Options != nil {
		c.Options = *o.Options
	}
	if o.Recovery != nil {
		c.Recovery = *o.Recovery
	}
	if o.Filters != nil {
		f := *o.Filters
		c.Filters = &f
	}
	return c
}

func configErr(format string, args ...interface{}) error {
	return apperrors.ErrConfiguration.WithMessagef(format, args...)
}

// validateConfig checks c against the replay config schema and the rules the schema
// cannot express. c must have its defaults applied.
func validateConfig(c Config, validator *schema.Validator, exprs ExpressionValidator, maxConcurrency int) error {
	if validator != nil {
		if err := validator.Validate(schema.ReplayConfig, c); err != nil {
			return apperrors.ErrConfiguration.WithMessagef("replay config %q does not match schema", c.ID).WithCause(err)
		}
	}

	if c.ID == "" {
		return configErr("replay config id is required")
	}

	switch c.Mode {
	case ModeFull, ModeIncremental:
	case ModeSelective:
		hasFilters := c.Filters != nil && (len(c.Filters.Include) > 0 || len(c.Filters.Exclude) > 0 || c.Filters.Expression != "")
		if len(c.Target.EventTypes) == 0 && len(c.Target.StreamIDs) == 0 && !hasFilters {
			return configErr("replay config %q: selective mode needs event types, stream ids or filters", c.ID)
		}
	case ModeTimeTravel:
		if c.TimeRange == nil || (c.TimeRange.From == nil && c.TimeRange.To == nil) {
			return configErr("replay config %q: time_travel mode needs a time range", c.ID)
		}
	default:
		return configErr("replay config %q: unknown mode %q", c.ID, c.Mode)
	}

	if tr := c.TimeRange; tr != nil && tr.From != nil && tr.To != nil && tr.From.After(*tr.To) {
		return configErr("replay config %q: time range starts after it ends", c.ID)
	}
	if vr := c.VersionRange; vr != nil && vr.To > 0 && vr.From > vr.To {
		return configErr("replay config %q: version range starts after it ends", c.ID)
	}

	if c.Options.BatchSize < 1 {
		return configErr("replay config %q: batch_size must be positive", c.ID)
	}
	if c.Options.MaxConcurrency < 1 {
		return configErr("replay config %q: max_concurrency must be positive", c.ID)
	}
	if maxConcurrency > 0 && c.Options.MaxConcurrency > maxConcurrency {
		return configErr("replay config %q: max_concurrency %d exceeds limit %d", c.ID, c.Options.MaxConcurrency, maxConcurrency)
	}
	if c.Recovery.Retries() < 0 {
		return configErr("replay config %q: max_retries must not be negative", c.ID)
	}

	switch c.Recovery.OnError {
	case OnErrorStop, OnErrorSkip, OnErrorRetry, OnErrorDLQ:
	default:
		return configErr("replay config %q: unknown on_error policy %q", c.ID, c.Recovery.OnError)
	}

	if _, err := compileFilters(c.Filters, exprs); err != nil {
		return err
	}
	return nil
}

type compiledFilters struct {
	include    []*regexp.Regexp
	exclude    []*regexp.Regexp
	expression string
}

func compileFilters(f *Filters, exprs ExpressionValidator) (*compiledFilters, error) {
	out := &compiledFilters{}
	if f == nil {
		return out, nil
	}
	for _, p := range f.Include {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, configErr("invalid include pattern %q: %v", p, err)
		}
		out.include = append(out.include, re)
	}
	for _, p := range f.Exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, configErr("invalid exclude pattern %q: %v", p, err)
		}
		out.exclude = append(out.exclude, re)
	}
	if f.Expression != "" {
		if exprs == nil {
			return nil, configErr("filter expression %q given but no expression evaluator is configured", f.Expression)
		}
		if err := exprs.ValidateBoolExpression(f.Expression); err != nil {
			return nil, apperrors.ErrConfiguration.WithMessagef("invalid filter expression %q", f.Expression).WithCause(err)
		}
		out.expression = f.Expression
	}
	return out, nil
}

func anyMatches(patterns []*regexp.Regexp, values ...string) bool {
	for _, re := range patterns {
		for _, v := range values {
			if re.MatchString(v) {
				return true
			}
		}
	}
	return false
}
