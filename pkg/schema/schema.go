package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "switchyard/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const baseURL = "https://switchyard.local/schemas/"

// Name identifies one of the embedded configuration schemas.
type Name string

const (
	RoutingTable Name = "routing_table"
	EventFilter  Name = "event_filter"
	Definitions  Name = "definitions"
	ReplayConfig Name = "replay_config"
	RecoveryPlan Name = "recovery_plan"
)

var names = []Name{RoutingTable, EventFilter, Definitions, ReplayConfig, RecoveryPlan}

// Validator checks configuration records before they are accepted.
type Validator struct {
	schemas map[Name]*jsonschema.Schema
}

func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + string(name) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(baseURL+string(name)+".json", bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	v := &Validator{schemas: make(map[Name]*jsonschema.Schema, len(names))}
	for _, name := range names {
		sch, err := compiler.Compile(baseURL + string(name) + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// MustNew is New for package-level initialization; the schemas are embedded, so failure is
// a build defect.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateJSON validates a raw JSON document.
func (v *Validator) ValidateJSON(name Name, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return apperrors.ErrValidation.WithMessagef("%s: invalid json: %v", name, err)
	}
	return v.validate(name, doc)
}

// Validate validates any value that encodes to JSON, such as a document decoded from YAML.
func (v *Validator) Validate(name Name, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.ErrValidation.WithMessagef("%s: %v", name, err)
	}
	return v.ValidateJSON(name, data)
}

func (v *Validator) validate(name Name, doc interface{}) error {
	sch, ok := v.schemas[name]
	if !ok {
		return apperrors.ErrInternal.WithMessagef("unknown schema %s", name)
	}

	err := sch.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		violations := collectViolations(ve)
		return apperrors.ErrValidation.
			WithMessagef("%s: %d schema violation(s)", name, len(violations)).
			WithDetail("violations", violations)
	}
	return apperrors.ErrValidation.WithMessagef("%s: %v", name, err)
}

func collectViolations(ve *jsonschema.ValidationError) []string {
	var out []string
	for _, cause := range ve.Causes {
		out = append(out, collectViolations(cause)...)
	}
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+ve.Message)
	}
	return out
}
