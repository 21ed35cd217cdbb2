package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/detyped/pkg/faults"
)

// Parser loads and validates schema documents from YAML, JSON and CUE.
type Parser struct {
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewParser creates a new parser.
func NewParser() *Parser {
	v := validator.New()
	mustRegister(v, "typename", validateTypeName)
	mustRegister(v, "identifier", validateIdentifier)
	mustRegister(v, "cardinality", validateCardinality)

	return &Parser{
		schemaRegistry: NewSchemaRegistry(),
		validator:      v,
	}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

var typeNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTypeName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if !typeNamePattern.MatchString(name) {
		return false
	}
	_, builtin := simpleNames[name]
	return !builtin
}

func validateIdentifier(fl validator.FieldLevel) bool {
	_, err := parseIdentifier(fl.Field().String())
	return err == nil
}

func validateCardinality(fl validator.FieldLevel) bool {
	_, err := parseCardinality(fl.Field().String())
	return err == nil
}

// GetSchemaRegistry returns the schema registry.
func (p *Parser) GetSchemaRegistry() *SchemaRegistry {
	return p.schemaRegistry
}

// Load reads a schema document and builds its catalog.
func (p *Parser) Load(path string) (*Catalog, error) {
	doc, err := p.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// LoadFile reads a schema document. YAML and JSON files are decoded
// directly, .cue files and directories are evaluated as CUE.
func (p *Parser) LoadFile(path string) (*SchemaDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return p.LoadCUEDirectory(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return p.LoadYAML(data, path)
	case ".cue":
		return p.LoadCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported schema file type: %s", filepath.Ext(path))
	}
}

// LoadYAML decodes a YAML or JSON schema document.
func (p *Parser) LoadYAML(data []byte, filename string) (*SchemaDocument, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, documentError(filename, []ValidationError{yamlError(filename, err)})
	}
	if generic == nil {
		return nil, documentError(filename, []ValidationError{{File: filename, Message: "empty document"}})
	}
	if err := p.schemaRegistry.ValidateAgainstSchema("document", generic); err != nil {
		return nil, documentError(filename, convertCUEErrors(err, filename))
	}

	return p.decode(data, filename)
}

// LoadCUE evaluates a CUE schema document. The document is unified with the
// built-in #SchemaDocument definition, so it may use CUE constraints and
// references as long as the result is concrete.
func (p *Parser) LoadCUE(data []byte, filename string) (*SchemaDocument, error) {
	val := p.schemaRegistry.Compile(data, filename)
	if err := val.Err(); err != nil {
		return nil, documentError(filename, convertCUEErrors(err, filename))
	}
	return p.fromCUE(val, filename)
}

// LoadCUEDirectory evaluates the CUE package in dir as one schema document.
func (p *Parser) LoadCUEDirectory(dir string) (*SchemaDocument, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, documentError(dir, []ValidationError{{File: dir, Message: "no CUE files found"}})
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, documentError(dir, convertCUEErrors(inst.Err, dir))
	}

	p.schemaRegistry.mu.Lock()
	val := p.schemaRegistry.ctx.BuildInstance(inst)
	p.schemaRegistry.mu.Unlock()
	if err := val.Err(); err != nil {
		return nil, documentError(dir, convertCUEErrors(err, dir))
	}
	return p.fromCUE(val, dir)
}

func (p *Parser) fromCUE(val cue.Value, filename string) (*SchemaDocument, error) {
	unified, err := p.schemaRegistry.Validate("document", val)
	if err != nil {
		return nil, documentError(filename, convertCUEErrors(err, filename))
	}

	// JSON keeps the field order of the CUE value, and the YAML decoder
	// keeps it in ItemList.
	data, err := unified.MarshalJSON()
	if err != nil {
		return nil, documentError(filename, convertCUEErrors(err, filename))
	}
	return p.decode(data, filename)
}

func (p *Parser) decode(data []byte, filename string) (*SchemaDocument, error) {
	var doc SchemaDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, documentError(filename, []ValidationError{yamlError(filename, err)})
	}
	if errs := p.validate(&doc, filename); len(errs) > 0 {
		return nil, documentError(filename, errs)
	}
	return &doc, nil
}

// Validate checks a decoded document against its struct constraints.
func (p *Parser) Validate(doc *SchemaDocument) error {
	if errs := p.validate(doc, ""); len(errs) > 0 {
		return documentError("", errs)
	}
	return nil
}

func (p *Parser) validate(doc *SchemaDocument, filename string) []ValidationError {
	err := p.validator.Struct(doc)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{File: filename, Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			File:    filename,
			Path:    strings.TrimPrefix(fe.Namespace(), "SchemaDocument."),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "typename":
		return fmt.Sprintf("%q is not a valid type name", fe.Value())
	case "identifier":
		return fmt.Sprintf("%q is not an identifier of the form element or element[@attribute]", fe.Value())
	case "cardinality":
		return fmt.Sprintf("%q is not a cardinality of the form min..max", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func yamlError(filename string, err error) ValidationError {
	ve := ValidationError{File: filename, Message: err.Error()}
	if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
		ve.Line, _ = strconv.Atoi(m[1])
	}
	return ve
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func convertCUEErrors(err error, filename string) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			File:    filename,
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			if pos[0].Filename() != "" {
				ve.File = pos[0].Filename()
			}
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{File: filename, Message: err.Error()})
	}
	return out
}

func documentError(filename string, errs []ValidationError) *faults.Error {
	what := "schema document"
	if filename != "" {
		what = "schema document " + filename
	}
	msg := fmt.Sprintf("%s is invalid: %s", what, errs[0])
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}
	return faults.NewSchemaError("%s", msg).
		WithCode(faults.ErrCodeDecode).
		WithDetail("errors", errs)
}

// ValidationErrors returns the document errors carried by err.
func ValidationErrors(err error) []ValidationError {
	fe, ok := faults.As(err)
	if !ok {
		return nil
	}
	errs, _ := fe.Details["errors"].([]ValidationError)
	return errs
}
