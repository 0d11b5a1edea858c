package search

import (
	"encoding/json"
	"strings"

	"github.com/khanglvm/toolgate/internal/catalog"
)

// Metadata keys stored alongside each vector.
const (
	metaName        = "name"
	metaCategory    = "category"
	metaDescription = "description"
	metaParameters  = "parameters"
	metaExamples    = "examples"
	metaKeywords    = "keywords"
)

// SynthesisPolicy controls how descriptor fields are weighted in the embedded
// text. Each weight is the number of times the field is repeated; zero omits it.
// Field order is fixed: description, keywords, name, category, parameters, examples.
type SynthesisPolicy struct {
	Description int
	Keywords    int
	Name        int
	Category    int
	Parameters  int
	Examples    int
}

// DefaultSynthesis favours descriptions and keywords, which carry the most
// intent, and puts examples last.
var DefaultSynthesis = SynthesisPolicy{
	Description: 2,
	Keywords:    2,
	Name:        1,
	Category:    1,
	Parameters:  1,
	Examples:    1,
}

// Text builds the embeddable text for d.
func (p SynthesisPolicy) Text(d catalog.Descriptor) string {
	var parts []string
	repeat := func(n int, s string) {
		if s == "" {
			return
		}
		for i := 0; i < n; i++ {
			parts = append(parts, s)
		}
	}

	repeat(p.Description, strings.TrimSpace(d.Description))
	repeat(p.Keywords, strings.Join(d.Keywords, " "))
	repeat(p.Name, strings.ReplaceAll(d.Name, "_", " "))
	repeat(p.Category, d.Category)

	var params []string
	for _, prm := range d.Parameters {
		params = append(params, strings.TrimSpace(prm.Name+" "+prm.Description))
	}
	repeat(p.Parameters, strings.Join(params, " "))

	var examples []string
	for _, ex := range d.Examples {
		examples = append(examples, ex.Input)
	}
	repeat(p.Examples, strings.Join(examples, " "))

	return strings.Join(parts, ". ")
}

// Document builds the indexable document for d.
func (p SynthesisPolicy) Document(d catalog.Descriptor) (Document, error) {
	meta, err := encodeMetadata(d)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: d.Name, Text: p.Text(d), Metadata: meta}, nil
}

func encodeMetadata(d catalog.Descriptor) (map[string]string, error) {
	params := d.Parameters
	if params == nil {
		params = catalog.Schema{}
	}
	paramJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{
		metaName:        d.Name,
		metaCategory:    d.Category,
		metaDescription: d.Description,
		metaParameters:  string(paramJSON),
	}
	if len(d.Examples) > 0 {
		exJSON, err := json.Marshal(d.Examples)
		if err != nil {
			return nil, err
		}
		meta[metaExamples] = string(exJSON)
	}
	if len(d.Keywords) > 0 {
		meta[metaKeywords] = strings.Join(d.Keywords, " ")
	}
	return meta, nil
}

// decodeResult rebuilds a SearchResult from stored metadata. Malformed
// parameter or example blobs are dropped rather than failing the search.
func decodeResult(id string, meta map[string]string, score float64) SearchResult {
	r := SearchResult{
		Name:        meta[metaName],
		Description: meta[metaDescription],
		Category:    meta[metaCategory],
		Score:       score,
		Parameters:  catalog.Schema{},
	}
	if r.Name == "" {
		r.Name = id
	}
	if raw := meta[metaParameters]; raw != "" {
		var schema catalog.Schema
		if err := json.Unmarshal([]byte(raw), &schema); err == nil && schema != nil {
			r.Parameters = schema
		}
	}
	if raw := meta[metaExamples]; raw != "" {
		var ex []catalog.Example
		if err := json.Unmarshal([]byte(raw), &ex); err == nil {
			r.Examples = ex
		}
	}
	return r
}
