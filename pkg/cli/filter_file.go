package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"log-manager/internal/domain"
	"log-manager/internal/filter"
	"log-manager/internal/service/query"
)

// filterFlags are shared by compile and query.
type filterFlags struct {
	path     string
	table    string
	timezone string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.path, "filter", "f", "", "Filter file (JSON or YAML, - for stdin)")
	fs.StringVar(&f.table, "table", "", "Table to query (default DEFAULT_TABLE)")
	fs.StringVar(&f.timezone, "timezone", "", "IANA timezone for time filters (default DEFAULT_TIMEZONE)")
}

// request reads the filter file and builds a submit request.
func (f *filterFlags) request(stdin io.Reader) (query.SubmitRequest, error) {
	if f.path == "" {
		return query.SubmitRequest{}, fmt.Errorf("--filter is required")
	}
	raw, err := loadFilterFile(f.path, stdin)
	if err != nil {
		return query.SubmitRequest{}, err
	}
	return query.SubmitRequest{Filter: raw, Table: f.table, Timezone: f.timezone}, nil
}

// loadFilterFile reads a filter document. Files ending in .yaml or .yml are
// parsed as YAML; everything else, including stdin, as JSON. Both accept a
// bare list of clauses or a {filter: [...]} document.
func loadFilterFile(path string, stdin io.Reader) ([]filter.RawClause, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // user-supplied path
	}
	if err != nil {
		return nil, fmt.Errorf("read filter: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAMLFilter(data)
	default:
		return filter.UnmarshalFilter(data)
	}
}

func decodeYAMLFilter(data []byte) ([]filter.RawClause, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, domain.ErrMalformedInput("invalid filter document: %s", err.Error())
	}
	if len(node.Content) == 0 {
		return nil, domain.ErrMalformedInput("missing query filter section")
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var raw []filter.RawClause
		if err := node.Content[0].Decode(&raw); err != nil {
			return nil, domain.ErrMalformedInput("invalid filter list: %s", err.Error())
		}
		return raw, nil
	}

	var doc struct {
		Filter []filter.RawClause `yaml:"filter"`
	}
	if err := node.Content[0].Decode(&doc); err != nil {
		return nil, domain.ErrMalformedInput("invalid filter document: %s", err.Error())
	}
	if doc.Filter == nil {
		return nil, domain.ErrMalformedInput("missing query filter section")
	}
	return doc.Filter, nil
}
