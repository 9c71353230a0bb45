package routing

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"switchyard/internal/notify"
	"switchyard/pkg/schema"
)

// Definitions is the on-disk routing configuration. Destinations map a route name to a
// delivery target understood by the HandlerFactory (a Kafka topic in the router-service).
type Definitions struct {
	Transforms   []TransformDefinition `yaml:"transforms,omitempty"`
	Destinations map[string]string     `yaml:"destinations,omitempty"`
	Tables       []RoutingTable        `yaml:"tables,omitempty"`
	Filters      []EventFilter         `yaml:"filters,omitempty"`
}

// HandlerFactory builds the handler for a destination declared in a definitions file.
type HandlerFactory func(name, target string) (Handler, error)

// ParseDefinitions decodes YAML and checks it against the definitions schema.
func ParseDefinitions(data []byte, validator *schema.Validator) (*Definitions, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErr("definitions: %v", err)
	}
	if doc == nil {
		return &Definitions{}, nil
	}
	if validator != nil {
		if err := validator.Validate(schema.Definitions, doc); err != nil {
			return nil, err
		}
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, configErr("definitions: %v", err)
	}
	return &defs, nil
}

func LoadDefinitions(path string, validator *schema.Validator) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions %s: %w", path, err)
	}
	return ParseDefinitions(data, validator)
}

// ApplyDefinitions replaces every table and filter with the ones in defs, in a single store
// update. Declared transforms and destinations are added or replaced; programmatically
// registered ones with other names are kept. Nothing changes if any record is invalid.
func (r *Router) ApplyDefinitions(ctx context.Context, defs *Definitions, values ValueEvaluator, handlers HandlerFactory) error {
	transforms := make(map[string]Transform, len(defs.Transforms))
	for _, td := range defs.Transforms {
		if values == nil {
			return configErr("transform %s: no expression evaluator configured", td.Name)
		}
		t, err := NewExpressionTransform(td, values)
		if err != nil {
			return err
		}
		transforms[td.Name] = t
	}

	built := make(map[string]Handler, len(defs.Destinations))
	for name, target := range defs.Destinations {
		if handlers == nil {
			return configErr("destination %s: no handler factory configured", name)
		}
		h, err := handlers(name, target)
		if err != nil {
			return configErr("destination %s: %v", name, err)
		}
		built[name] = h
	}

	var removedTables, removedFilters []string
	gen, err := r.store.Update(func(d *draft) error {
		for name, t := range transforms {
			d.transforms[name] = t
		}
		for name, h := range built {
			d.handlers[name] = h
		}

		keepTables := make(map[string]bool, len(defs.Tables))
		previous := d.tables
		d.tables = nil
		for _, table := range defs.Tables {
			if keepTables[table.ID] {
				return configErr("definitions: duplicate table id %q", table.ID)
			}
			keepTables[table.ID] = true

			ct, err := compileTable(table, r.eval, d.transforms)
			if err != nil {
				return err
			}
			ct.CreatedAt, ct.UpdatedAt = r.now().UTC(), r.now().UTC()
			if ct.Version < 1 {
				ct.Version = 1
			}
			for _, prev := range previous {
				if prev.ID == ct.ID {
					ct.CreatedAt = prev.CreatedAt
					ct.Version = prev.Version + 1
				}
			}
			d.putTable(ct)
		}
		for _, prev := range previous {
			if !keepTables[prev.ID] {
				removedTables = append(removedTables, prev.ID)
			}
		}

		keepFilters := make(map[string]bool, len(defs.Filters))
		previousFilters := d.filters
		d.filters = nil
		for _, filter := range defs.Filters {
			if keepFilters[filter.ID] {
				return configErr("definitions: duplicate filter id %q", filter.ID)
			}
			keepFilters[filter.ID] = true

			cf, err := compileFilter(filter, r.eval, d.transforms)
			if err != nil {
				return err
			}
			d.putFilter(cf)
		}
		for _, prev := range previousFilters {
			if !keepFilters[prev.ID] {
				removedFilters = append(removedFilters, prev.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.afterUpdate(gen)
	r.logger.InfowCtx(ctx, "Routing definitions applied",
		"tables", len(defs.Tables),
		"filters", len(defs.Filters),
		"transforms", len(defs.Transforms),
		"destinations", len(defs.Destinations),
		"generation", gen,
	)

	for name := range built {
		r.notifier.Publish(notify.Notification{Kind: notify.KindHandlerRegistered, Subject: name})
	}
	for _, t := range defs.Tables {
		r.notifier.Publish(notify.Notification{Kind: notify.KindRoutingTableAdded, Subject: t.ID})
	}
	for _, id := range removedTables {
		r.notifier.Publish(notify.Notification{Kind: notify.KindRoutingTableRemoved, Subject: id})
	}
	for _, f := range defs.Filters {
		r.notifier.Publish(notify.Notification{Kind: notify.KindFilterAdded, Subject: f.ID})
	}
	for _, id := range removedFilters {
		r.notifier.Publish(notify.Notification{Kind: notify.KindFilterRemoved, Subject: id})
	}
	return nil
}
