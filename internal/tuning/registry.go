package tuning

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quorum/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

// Snapshot is one immutable view of the parameter set. Version increments on
// every successful reload so consumers can tag derived artifacts with the
// tuning generation they were computed under.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Params   Params
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads the tuning file, validates it against the embedded schema
// and hot-reloads on file changes. A failed reload keeps the previous
// snapshot in place.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the tuning file and starts watching it. An empty path
// yields a static registry serving Defaults.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if r.path == "" {
		r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Params: Defaults()}
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tuning config failed: %w", err)
	}
	r.v = v
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("tuning reload failed, keeping previous snapshot: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Static wraps a fixed parameter set, for tests and callers that do not want
// file watching.
func Static(p Params) *Registry {
	return &Registry{snapshot: Snapshot{Version: 1, LoadedAt: time.Now(), Params: p}}
}

// Snapshot returns the current parameter set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Params is a convenience accessor for the current values.
func (r *Registry) Params() Params {
	return r.Snapshot().Params
}

// Subscribe registers a listener for future reloads.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	if err := r.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read tuning config failed: %w", err)
	}
	if err := validateDocument(r.v.AllSettings()); err != nil {
		return fmt.Errorf("tuning config rejected: %w", err)
	}
	params := Defaults()
	if err := r.v.Unmarshal(&params); err != nil {
		return fmt.Errorf("decode tuning config failed: %w", err)
	}
	if err := params.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Params:   params,
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("Tuning registry loaded v%d from %s", version, filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("tuning listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

// validate enforces the structural invariants the schema cannot express:
// band edges must be strictly ordered or the action mapping stops being a
// function of the score.
func (p Params) validate() error {
	b := p.Council.Bands
	if !(b.AggressiveBuy > b.Accumulate && b.Accumulate > b.NeutralFloor && b.NeutralFloor > b.TrimFloor) {
		return fmt.Errorf("council bands must be strictly descending: %+v", b)
	}
	for _, dim := range []struct {
		name  string
		edges DriftEdges
	}{
		{"price_pct", p.Delta.PricePct},
		{"technical", p.Delta.Technical},
		{"action", p.Delta.Action},
		{"momentum", p.Delta.Momentum},
	} {
		e := dim.edges
		if !(e.Critical >= e.High && e.High >= e.Medium && e.Medium > 0) {
			return fmt.Errorf("delta edges for %s must ascend: %+v", dim.name, e)
		}
	}
	if p.Risk.HealthyFloor <= p.Risk.WarningFloor {
		return fmt.Errorf("risk healthy_floor must exceed warning_floor")
	}
	if p.Council.AvailabilityPenalty <= 0 || p.Council.AvailabilityPenalty > 1 {
		return fmt.Errorf("availability_penalty must be in (0,1]")
	}
	return nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func validateDocument(settings map[string]interface{}) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("tuning.schema.json", strings.NewReader(tuningSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("tuning.schema.json")
	})
	if schemaErr != nil {
		return schemaErr
	}
	// Round-trip through JSON so yaml ints become float64 the way the
	// validator expects.
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return compiledSchema.Validate(doc)
}
