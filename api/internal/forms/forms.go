package forms

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"damage-control/api/internal/common"
)

// DefaultType is used when a request does not name a document type.
const DefaultType = "general"

//go:embed schemas/*.schema.json
var embedded embed.FS

// Form is the output shape the extraction model has to fill in for one document type.
type Form struct {
	Name   string
	raw    []byte
	schema *jsonschema.Schema
}

// Schema returns the form's JSON Schema text as given to the model.
func (f *Form) Schema() string { return string(f.raw) }

// Validate checks an extracted document against the form.
func (f *Form) Validate(doc any) error {
	if err := f.schema.Validate(doc); err != nil {
		return fmt.Errorf("%s form: %w", f.Name, err)
	}
	return nil
}

// Registry resolves document types to forms.
type Registry struct {
	forms map[string]*Form
}

// Load builds the registry from the embedded forms, letting <dir>/<type>.schema.json
// replace or add forms when dir is set.
func Load(dir string) (*Registry, error) {
	sources := map[string][]byte{}

	entries, err := embedded.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := embedded.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		sources[strings.TrimSuffix(e.Name(), ".schema.json")] = b
	}

	if dir = strings.TrimSpace(dir); dir != "" {
		files, err := filepath.Glob(filepath.Join(dir, "*.schema.json"))
		if err != nil {
			return nil, err
		}
		for _, p := range files {
			b, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read form %s: %w", p, err)
			}
			sources[strings.TrimSuffix(filepath.Base(p), ".schema.json")] = b
		}
	}

	r := &Registry{forms: make(map[string]*Form, len(sources))}
	for name, b := range sources {
		f, err := compile(name, b)
		if err != nil {
			return nil, err
		}
		r.forms[name] = f
	}
	if _, ok := r.forms[DefaultType]; !ok {
		return nil, errors.New("forms: no " + DefaultType + " form")
	}
	return r, nil
}

func compile(name string, b []byte) (*Form, error) {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("bad %s form: %w", name, err)
	}
	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add %s form: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s form: %w", name, err)
	}
	return &Form{Name: name, raw: bytes.TrimSpace(b), schema: s}, nil
}

// Lookup returns the form for docType; empty means DefaultType.
func (r *Registry) Lookup(docType string) (*Form, error) {
	docType = strings.TrimSpace(docType)
	if docType == "" {
		docType = DefaultType
	}
	f, ok := r.forms[docType]
	if !ok {
		return nil, common.InvalidInput("%s is an invalid document type, choose one of: %s",
			docType, strings.Join(r.Types(), ", "))
	}
	return f, nil
}

// Types lists the known document types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.forms))
	for k := range r.forms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
