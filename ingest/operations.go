package ingest

import (
	"encoding/json"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/TFMV/echocolor/models"
)

// OperationProcessor turns a raw operation document into a playback queue
type OperationProcessor interface {
	ProcessOperations(data []byte) ([]models.Operation, error)
	GetName() string
}

// JSONOperationProcessor reads [["A",0,1], ...]
type JSONOperationProcessor struct{}

// GetName returns the name of the processor
func (p *JSONOperationProcessor) GetName() string {
	return "JSON Operation Processor"
}

// ProcessOperations decodes a list of (vertex, colorA, colorB) triples.
// The vertex may be a JSON string or number.
func (p *JSONOperationProcessor) ProcessOperations(data []byte) ([]models.Operation, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, "ingest: parsing operations JSON")
	}

	ops := make([]models.Operation, 0, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, errors.Wrapf(ErrMalformedOperation, "operation %d has %d fields", i, len(row))
		}
		name, err := decodeName(row[0])
		if err != nil {
			return nil, errors.Wrapf(err, "operation %d", i)
		}
		var a, b int
		if err := json.Unmarshal(row[1], &a); err != nil {
			return nil, errors.Wrapf(ErrMalformedOperation, "operation %d: color %s", i, row[1])
		}
		if err := json.Unmarshal(row[2], &b); err != nil {
			return nil, errors.Wrapf(ErrMalformedOperation, "operation %d: color %s", i, row[2])
		}
		ops = append(ops, models.Operation{Vertex: name, ColorA: a, ColorB: b})
	}
	return ops, nil
}

// Script grammar, one step per line:
//
//	# comment
//	A 0 1
//	"vertex 7": 2, 3; B 1 2
var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "Punct", Pattern: `[:,;]`},
	{Name: "EOL", Pattern: `[\r\n]+`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type script struct {
	Steps []*scriptStep `( @@ | EOL | ";" )*`
}

type scriptStep struct {
	Vertex string `@(String | Ident | Int) ":"?`
	ColorA int    `@Int ","?`
	ColorB int    `@Int`
}

var parseScript = participle.MustBuild[script](
	participle.Lexer(scriptLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
)

// ScriptOperationProcessor reads the line-oriented operation script
type ScriptOperationProcessor struct{}

// GetName returns the name of the processor
func (p *ScriptOperationProcessor) GetName() string {
	return "Script Operation Processor"
}

// ProcessOperations parses the script into operations in source order
func (p *ScriptOperationProcessor) ProcessOperations(data []byte) ([]models.Operation, error) {
	parsed, err := parseScript.ParseBytes("", data)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedOperation, err.Error())
	}

	ops := make([]models.Operation, 0, len(parsed.Steps))
	for _, step := range parsed.Steps {
		ops = append(ops, models.Operation{Vertex: step.Vertex, ColorA: step.ColorA, ColorB: step.ColorB})
	}
	return ops, nil
}

// GetOperationProcessor returns the operation processor for format
func GetOperationProcessor(format string) (OperationProcessor, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return &JSONOperationProcessor{}, nil
	case "script", "txt":
		return &ScriptOperationProcessor{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "operation format %q", format)
	}
}
