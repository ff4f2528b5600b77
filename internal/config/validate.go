// CUE schema validation code
package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

//go:embed schema/sweep.cue
var schemaSource []byte

// ValidateWithCue checks raw YAML bytes against the embedded #Sweep schema.
// filename is only used in error messages.
func ValidateWithCue(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("sweep.cue"))
	if schema.Err() != nil {
		return fmt.Errorf("compile schema: %w", schema.Err())
	}
	def := schema.LookupPath(cue.ParsePath("#Sweep"))

	file, err := yaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("cannot parse YAML config: %w", err)
	}
	val := ctx.BuildFile(file)
	if val.Err() != nil {
		return fmt.Errorf("cannot build YAML config: %w", val.Err())
	}

	final := def.Unify(val)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
