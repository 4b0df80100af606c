package apidoc

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-faker/faker/v4"
	"github.com/lucasjones/reggen"
)

const (
	defaultArrayLength = 2
	maxSampleDepth     = 8
)

// Sampler builds example values that satisfy a schema. Field names steer the
// generated text so samples read like real meeting payloads.
type Sampler struct {
	rand    *rand.Rand
	formats map[string]func() string
}

// NewSampler creates a sampler; a zero seed picks a time-based one
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &Sampler{rand: rand.New(rand.NewPCG(seed, seed>>1))}
	s.formats = map[string]func() string{
		"email":     func() string { return faker.Email() },
		"uuid":      func() string { return faker.UUIDHyphenated() },
		"uri":       func() string { return faker.URL() },
		"hostname":  func() string { return faker.DomainName() },
		"date":      func() string { return s.day().Format(time.DateOnly) },
		"date-time": func() string { return s.day().Format(time.RFC3339) },
	}
	return s
}

func (s *Sampler) day() time.Time {
	return time.Now().UTC().AddDate(0, 0, s.rand.IntN(60)-30)
}

// Sample returns an example value for a component schema
func (d *Document) Sample(schemaName string, sampler *Sampler) (any, error) {
	ref, ok := d.doc.Components.Schemas[schemaName]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("schema %s not found", schemaName)
	}
	return sampler.Value(ref.Value, ""), nil
}

// SampleSummarizeRequest renders an example summarize request body
func (d *Document) SampleSummarizeRequest(sampler *Sampler) ([]byte, error) {
	value, err := d.Sample(SummarizeRequestSchema, sampler)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(value, "", "  ")
}

// Value generates data for schema; field is the property name, if any
func (s *Sampler) Value(schema *openapi3.Schema, field string) any {
	return s.value(schema, field, 0)
}

func (s *Sampler) value(schema *openapi3.Schema, field string, depth int) any {
	if schema == nil || depth > maxSampleDepth {
		return nil
	}
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[s.rand.IntN(len(schema.Enum))]
	}
	if len(schema.AllOf) > 0 && schema.AllOf[0].Value != nil {
		return s.value(schema.AllOf[0].Value, field, depth+1)
	}
	for _, refs := range []openapi3.SchemaRefs{schema.OneOf, schema.AnyOf} {
		if len(refs) > 0 {
			if picked := refs[s.rand.IntN(len(refs))]; picked.Value != nil {
				return s.value(picked.Value, field, depth+1)
			}
		}
	}

	switch {
	case schema.Type.Is(openapi3.TypeObject):
		return s.object(schema, field, depth)
	case schema.Type.Is(openapi3.TypeArray):
		return s.array(schema, field, depth)
	case schema.Type.Is(openapi3.TypeString):
		return s.str(schema, field)
	case schema.Type.Is(openapi3.TypeInteger):
		return s.integer(schema)
	case schema.Type.Is(openapi3.TypeNumber):
		return s.number(schema)
	case schema.Type.Is(openapi3.TypeBoolean):
		return s.rand.IntN(2) == 1
	}
	return nil
}

func (s *Sampler) object(schema *openapi3.Schema, field string, depth int) any {
	result := make(map[string]any, len(schema.Properties))
	for name, prop := range schema.Properties {
		if prop.Value == nil {
			continue
		}
		result[name] = s.value(prop.Value, name, depth+1)
	}
	if len(schema.Properties) == 0 && field != "" {
		// Free-form maps get a couple of descriptive entries.
		result["source"] = faker.Word()
		result["team"] = faker.Word()
	}
	return result
}

func (s *Sampler) array(schema *openapi3.Schema, field string, depth int) any {
	if schema.Items == nil || schema.Items.Value == nil {
		return []any{}
	}

	length := defaultArrayLength
	if int(schema.MinItems) > length {
		length = int(schema.MinItems)
	}
	if schema.MaxItems != nil && int(*schema.MaxItems) < length {
		length = int(*schema.MaxItems)
	}

	result := make([]any, 0, length)
	for range length {
		result = append(result, s.value(schema.Items.Value, field, depth+1))
	}
	return result
}

func (s *Sampler) str(schema *openapi3.Schema, field string) string {
	var out string
	switch {
	case s.formats[schema.Format] != nil:
		out = s.formats[schema.Format]()
	case schema.Pattern != "":
		generated, err := reggen.Generate(schema.Pattern, 12)
		if err != nil {
			out = faker.Word()
			break
		}
		// Constraints are not applied to pattern output.
		return generated
	default:
		out = byFieldName(field)
	}
	return constrainLength(out, schema)
}

func byFieldName(field string) string {
	lower := strings.ToLower(field)
	switch {
	case lower == "transcript":
		return transcript()
	case strings.HasSuffix(lower, "_id") || lower == "id":
		return faker.UUIDHyphenated()
	case strings.Contains(lower, "title"):
		return strings.TrimSuffix(faker.Sentence(), ".")
	case strings.Contains(lower, "owner") || strings.Contains(lower, "name"):
		return faker.Name()
	case strings.Contains(lower, "summary") || strings.Contains(lower, "description"):
		return faker.Sentence()
	}
	return faker.Word()
}

func transcript() string {
	speakers := []string{faker.FirstName(), faker.FirstName()}
	var b strings.Builder
	for i := range 4 {
		fmt.Fprintf(&b, "%s: %s\n", speakers[i%2], faker.Sentence())
	}
	return strings.TrimSpace(b.String())
}

func constrainLength(str string, schema *openapi3.Schema) string {
	for uint64(len(str)) < schema.MinLength {
		str += faker.Word()
	}
	if schema.MaxLength != nil && uint64(len(str)) > *schema.MaxLength {
		str = str[:*schema.MaxLength]
	}
	return str
}

func (s *Sampler) integer(schema *openapi3.Schema) int {
	lo, hi := 1, 100
	if schema.Min != nil {
		lo = int(*schema.Min)
	}
	if schema.Max != nil {
		hi = int(*schema.Max)
	}
	if hi < lo {
		return lo
	}
	return lo + s.rand.IntN(hi-lo+1)
}

func (s *Sampler) number(schema *openapi3.Schema) float64 {
	lo, hi := 1.0, 100.0
	if schema.Min != nil {
		lo = *schema.Min
	}
	if schema.Max != nil {
		hi = *schema.Max
	}
	return lo + s.rand.Float64()*(hi-lo)
}
