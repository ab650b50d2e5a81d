package httpapi

import (
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aaileenssyed/LocalFlow/export"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/session"
	"gopkg.in/yaml.v3"
)

// OpenAPIDocument represents the complete OpenAPI 3.0 specification.
type OpenAPIDocument struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       InfoObject          `yaml:"info"`
	Servers    []ServerObject      `yaml:"servers"`
	Paths      map[string]PathItem `yaml:"paths"`
	Components ComponentsObject    `yaml:"components"`
	Tags       []TagObject         `yaml:"tags"`
}

// InfoObject contains API metadata.
type InfoObject struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// ServerObject defines an API server.
type ServerObject struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// ComponentsObject holds reusable objects.
type ComponentsObject struct {
	Schemas map[string]any `yaml:"schemas"`
}

// TagObject defines an API tag.
type TagObject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PathItem describes operations available on a path.
type PathItem struct {
	Get    *Operation `yaml:"get,omitempty"`
	Post   *Operation `yaml:"post,omitempty"`
	Put    *Operation `yaml:"put,omitempty"`
	Delete *Operation `yaml:"delete,omitempty"`
}

// Operation describes a single API operation.
type Operation struct {
	Summary     string              `yaml:"summary"`
	Tags        []string            `yaml:"tags,omitempty"`
	Parameters  []Parameter         `yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `yaml:"requestBody,omitempty"`
	Responses   map[string]Response `yaml:"responses"`
}

// Parameter describes an operation parameter.
type Parameter struct {
	Name        string    `yaml:"name"`
	In          string    `yaml:"in"`
	Description string    `yaml:"description,omitempty"`
	Required    bool      `yaml:"required,omitempty"`
	Schema      SchemaRef `yaml:"schema"`
}

// RequestBody describes a JSON request body.
type RequestBody struct {
	Required bool                 `yaml:"required"`
	Content  map[string]MediaType `yaml:"content"`
}

// Response describes an operation response.
type Response struct {
	Description string               `yaml:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty"`
}

// MediaType describes a media type and schema.
type MediaType struct {
	Schema SchemaRef `yaml:"schema"`
}

// SchemaRef references a schema.
type SchemaRef struct {
	Ref    string     `yaml:"$ref,omitempty"`
	Type   string     `yaml:"type,omitempty"`
	Format string     `yaml:"format,omitempty"`
	Enum   []string   `yaml:"enum,omitempty"`
	Items  *SchemaRef `yaml:"items,omitempty"`
}

// endpoint documents one route of Handler.
type endpoint struct {
	method   string
	path     string
	summary  string
	tag      string
	request  any
	response any
	array    bool
	status   int
	errors   []int
	query    []Parameter
	// produces lists non-JSON media types of the success body.
	produces []string
}

var endpoints = []endpoint{
	{method: http.MethodGet, path: "/api/status", summary: "Session state", tag: "session",
		response: session.Status{}, status: http.StatusOK},
	{method: http.MethodGet, path: "/api/preferences", summary: "Current preferences", tag: "preferences",
		response: itinerary.UserPreferences{}, status: http.StatusOK},
	{method: http.MethodPut, path: "/api/preferences", summary: "Replace preferences and commitments", tag: "preferences",
		request: preferencesRequest{}, response: itinerary.UserPreferences{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/commitments", summary: "Commitments in start-time order", tag: "commitments",
		response: itinerary.FixedCommitment{}, array: true, status: http.StatusOK},
	{method: http.MethodPost, path: "/api/commitments", summary: "Add a commitment", tag: "commitments",
		request: commitmentRequest{}, response: itinerary.FixedCommitment{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest}},
	{method: http.MethodDelete, path: "/api/commitments/{commitmentID}", summary: "Remove a commitment", tag: "commitments",
		status: http.StatusNoContent, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/itinerary", summary: "Installed itinerary", tag: "itinerary",
		response: itineraryResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/itinerary", summary: "Generate a new itinerary", tag: "itinerary",
		response: itineraryResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusConflict, http.StatusBadGateway}},
	{method: http.MethodDelete, path: "/api/itinerary", summary: "Discard the itinerary", tag: "itinerary",
		status: http.StatusNoContent},
	{method: http.MethodPost, path: "/api/itinerary/recalculate", summary: "Replan the rest of the day", tag: "itinerary",
		request: recalculateRequest{}, response: itineraryResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadGateway}},
	{method: http.MethodGet, path: "/api/itinerary/links", summary: "Maps link per stop", tag: "itinerary",
		response: itinerary.Link{}, array: true, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/itinerary/export", summary: "Itinerary as a calendar, map or document file", tag: "itinerary",
		status: http.StatusOK, errors: []int{http.StatusBadRequest, http.StatusNotFound},
		query: []Parameter{
			{Name: "format", In: "query", Description: "Export format, markdown by default",
				Schema: SchemaRef{Type: "string", Enum: export.FormatNames()}},
			{Name: "date", In: "query", Description: "Trip day as YYYY-MM-DD, today by default",
				Schema: SchemaRef{Type: "string", Format: "date"}},
		},
		produces: exportMediaTypes()},
}

func exportMediaTypes() []string {
	types := make([]string, 0, len(export.FormatRegistry))
	for _, name := range export.FormatNames() {
		info, _ := export.GetFormatInfo(export.Format(name))
		types = append(types, info.MIMEType)
	}
	return types
}

var tagDescriptions = map[string]string{
	"session":     "Planning session state",
	"preferences": "User preferences",
	"commitments": "Fixed commitments the plan is built around",
	"itinerary":   "Generation, recalculation and navigation",
}

// componentNames gives the unexported request types public schema names.
var componentNames = map[reflect.Type]string{
	reflect.TypeOf(preferencesRequest{}): "PreferencesRequest",
	reflect.TypeOf(commitmentRequest{}):  "CommitmentRequest",
	reflect.TypeOf(recalculateRequest{}): "RecalculateRequest",
	reflect.TypeOf(itineraryResponse{}):  "ItineraryResponse",
	reflect.TypeOf(errorResponse{}):      "Error",
}

// OpenAPI describes the routes served by Handler.
func OpenAPI(version string) OpenAPIDocument {
	doc := OpenAPIDocument{
		OpenAPI: "3.0.3",
		Info: InfoObject{
			Title:       "LocalFlow API",
			Description: "Single-day itinerary planning around fixed commitments",
			Version:     version,
		},
		Servers:    []ServerObject{{URL: "http://localhost:8080", Description: "Development server"}},
		Paths:      make(map[string]PathItem),
		Components: ComponentsObject{Schemas: make(map[string]any)},
	}

	addSchema(doc.Components.Schemas, reflect.TypeOf(errorResponse{}))

	tags := make(map[string]bool)
	for _, ep := range endpoints {
		tags[ep.tag] = true
		op := &Operation{
			Summary:   ep.summary,
			Tags:      []string{ep.tag},
			Responses: make(map[string]Response),
		}
		if strings.Contains(ep.path, "{commitmentID}") {
			op.Parameters = []Parameter{{Name: "commitmentID", In: "path", Required: true, Schema: SchemaRef{Type: "string"}}}
		}
		op.Parameters = append(op.Parameters, ep.query...)
		if ep.request != nil {
			ref := addSchema(doc.Components.Schemas, reflect.TypeOf(ep.request))
			op.RequestBody = &RequestBody{
				Required: true,
				Content:  map[string]MediaType{"application/json": {Schema: ref}},
			}
		}

		ok := Response{Description: http.StatusText(ep.status)}
		if ep.response != nil {
			ref := addSchema(doc.Components.Schemas, reflect.TypeOf(ep.response))
			if ep.array {
				item := ref
				ref = SchemaRef{Type: "array", Items: &item}
			}
			ok.Content = map[string]MediaType{"application/json": {Schema: ref}}
		}
		if len(ep.produces) > 0 {
			ok.Content = make(map[string]MediaType, len(ep.produces))
			for _, mt := range ep.produces {
				ok.Content[mt] = MediaType{Schema: SchemaRef{Type: "string"}}
			}
		}
		op.Responses[strconv.Itoa(ep.status)] = ok
		for _, code := range ep.errors {
			op.Responses[strconv.Itoa(code)] = Response{
				Description: http.StatusText(code),
				Content:     map[string]MediaType{"application/json": {Schema: SchemaRef{Ref: "#/components/schemas/Error"}}},
			}
		}

		item := doc.Paths[ep.path]
		switch ep.method {
		case http.MethodGet:
			item.Get = op
		case http.MethodPost:
			item.Post = op
		case http.MethodPut:
			item.Put = op
		case http.MethodDelete:
			item.Delete = op
		}
		doc.Paths[ep.path] = item
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Tags = append(doc.Tags, TagObject{Name: name, Description: tagDescriptions[name]})
	}
	return doc
}

// MarshalOpenAPI renders the document as YAML.
func MarshalOpenAPI(version string) ([]byte, error) {
	return yaml.Marshal(OpenAPI(version))
}

func (s *Server) openAPI(w http.ResponseWriter, r *http.Request) {
	data, err := MarshalOpenAPI(s.version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func addSchema(schemas map[string]any, t reflect.Type) SchemaRef {
	name := typeName(t)
	if _, ok := schemas[name]; !ok {
		schemas[name] = schemaFromType(t)
	}
	return SchemaRef{Ref: "#/components/schemas/" + name}
}

// schemaFromType generates a JSON Schema from a reflect.Type.
func schemaFromType(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		schema := schemaFromType(t.Elem())
		schema["nullable"] = true
		return schema
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]any{"type": "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer", "minimum": 0}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return map[string]any{"type": "string", "format": "date-time"}
		}
		return schemaFromStruct(t)
	case reflect.Slice:
		return map[string]any{"type": "array", "items": schemaFromType(t.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object", "additionalProperties": schemaFromType(t.Elem())}
	default:
		return map[string]any{}
	}
}

// schemaFromStruct builds an object schema. Request types mark required
// fields with validate tags; response fields are required unless omitempty
// or a pointer.
func schemaFromStruct(t reflect.Type) map[string]any {
	properties := make(map[string]any)
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts := parseJSONTag(field.Tag.Get("json"))
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema := schemaFromType(field.Type)
		rules, validated := field.Tag.Lookup("validate")
		applyRules(fieldSchema, rules)
		properties[name] = fieldSchema

		switch {
		case validated:
			if hasRule(rules, "required") {
				required = append(required, name)
			}
		case !strings.Contains(opts, "omitempty") && field.Type.Kind() != reflect.Ptr:
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// applyRules maps validator tags onto schema keywords.
func applyRules(schema map[string]any, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		key, param, _ := strings.Cut(rule, "=")
		switch key {
		case "dive":
			return
		case "clock":
			schema["pattern"] = `^([01]\d|2[0-3]):[0-5]\d$`
		case "budget":
			schema["enum"] = []string{string(itinerary.BudgetEconomy), string(itinerary.BudgetModerate), string(itinerary.BudgetLuxury)}
		case "latitude":
			schema["minimum"], schema["maximum"] = -90, 90
		case "longitude":
			schema["minimum"], schema["maximum"] = -180, 180
		case "min", "max":
			n, err := strconv.Atoi(param)
			if err != nil {
				continue
			}
			switch schema["type"] {
			case "string":
				schema[key+"Length"] = n
			case "array":
				schema[key+"Items"] = n
			default:
				schema[map[string]string{"min": "minimum", "max": "maximum"}[key]] = n
			}
		}
	}
}

func hasRule(rules, want string) bool {
	for _, rule := range strings.Split(rules, ",") {
		if rule == "dive" {
			return false
		}
		if rule == want {
			return true
		}
	}
	return false
}

// parseJSONTag parses a json struct tag and returns the name and options.
func parseJSONTag(tag string) (name string, opts string) {
	name, opts, _ = strings.Cut(tag, ",")
	return name, opts
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name, ok := componentNames[t]; ok {
		return name
	}
	return t.Name()
}
