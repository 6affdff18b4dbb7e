// Package expectations implements types.ExpectationStore backed by a YAML
// file mapping outcome name to expected result and tags. Grounded on the
// teacher's cli/config.Load: gopkg.in/yaml.v3 with KnownFields(true) so a
// typo'd key in an expectations file fails loudly instead of silently
// being ignored.
package expectations

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/actiondriver/types"
)

// entry is the YAML shape for one expectations-file record.
type entry struct {
	Result string   `yaml:"result"`
	Tags   []string `yaml:"tags,omitempty"`
}

// file is the top-level YAML document shape: a map from outcome name to
// its expectation entry.
type file map[string]entry

// Store is an in-memory, read-only ExpectationStore loaded from a YAML
// file.
type Store struct {
	expectations map[string]types.Expectation
}

// Load reads path, parses it as a YAML expectations file, and returns a
// Store. Unknown result values are rejected at load time so a typo
// ("SUCCES") surfaces immediately rather than silently never matching.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("expectations file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read expectations file %q: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var parsed file
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	expectations := make(map[string]types.Expectation, len(parsed))
	for name, e := range parsed {
		result := types.Result(e.Result)
		if !validResult(result) {
			return nil, fmt.Errorf("expectations file %s: %q has unknown result %q", path, name, e.Result)
		}

		var tags map[string]struct{}
		if len(e.Tags) > 0 {
			tags = make(map[string]struct{}, len(e.Tags))
			for _, t := range e.Tags {
				tags[t] = struct{}{}
			}
		}

		expectations[name] = types.Expectation{Result: result, Tags: tags}
	}

	return &Store{expectations: expectations}, nil
}

// Get implements types.ExpectationStore.
func (s *Store) Get(name string) (types.Expectation, bool) {
	e, ok := s.expectations[name]
	return e, ok
}

func validResult(r types.Result) bool {
	switch r {
	case types.ResultSuccess, types.ResultExecFailed, types.ResultExecTimeout,
		types.ResultCompileFailed, types.ResultUnsupported, types.ResultError:
		return true
	default:
		return false
	}
}

var _ types.ExpectationStore = (*Store)(nil)
