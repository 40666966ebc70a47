package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/queryir"
)

// CompileProcedure parses a CUE value into a Procedure.
//
// The CUE value should be the procedure struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`procedure: xpFoo: { ... }`)
//	p, err := CompileProcedure(v.LookupPath(cue.ParsePath("procedure.xpFoo")))
func CompileProcedure(v cue.Value) (*Procedure, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Procedure{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = labels[len(labels)-1].String()
	}
	if !queryir.ValidIdentifier(p.Name) {
		return nil, &CompileError{
			Field:   "name",
			Message: fmt.Sprintf("invalid procedure name %q", p.Name),
			Pos:     v.Pos(),
		}
	}

	var err error
	if p.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	if p.Params, err = parseParams(v); err != nil {
		return nil, err
	}
	if p.Exec, err = stringList(v, "exec"); err != nil {
		return nil, err
	}
	if p.Output, err = optionalString(v, "output"); err != nil {
		return nil, err
	}
	if p.Assert, err = stringList(v, "assert"); err != nil {
		return nil, err
	}
	if p.Result, err = optionalString(v, "result"); err != nil {
		return nil, err
	}

	if len(p.Statements()) == 0 {
		return nil, &CompileError{
			Field:   "exec",
			Message: "procedure needs at least one of exec, output, assert or result",
			Pos:     v.Pos(),
		}
	}

	for _, stmt := range p.Statements() {
		for _, ref := range ParamRefs(stmt) {
			if _, ok := p.Param(ref); !ok {
				return nil, &CompileError{
					Field:   "params",
					Message: fmt.Sprintf("statement references undeclared parameter :%s", ref),
					Pos:     v.Pos(),
				}
			}
		}
	}

	return p, nil
}

// parseParams reads params in declaration order.
func parseParams(v cue.Value) ([]Param, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil
	}

	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []Param
	for iter.Next() {
		name := iter.Label()
		pv := iter.Value()

		if !queryir.ValidIdentifier(name) {
			return nil, &CompileError{
				Field:   "params",
				Message: fmt.Sprintf("invalid parameter name %q", name),
				Pos:     pv.Pos(),
			}
		}

		typeText, err := optionalString(pv, "type")
		if err != nil {
			return nil, err
		}
		if typeText == "" {
			return nil, &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("parameter %s needs a type", name),
				Pos:     pv.Pos(),
			}
		}
		typ, err := ir.ParseDataType(typeText)
		if err != nil {
			return nil, &CompileError{Field: "type", Message: err.Error(), Pos: pv.Pos()}
		}

		dirText, err := optionalString(pv, "direction")
		if err != nil {
			return nil, err
		}
		dir := ir.OutputType(dirText)
		if dir == ir.OutputUnspecified {
			dir = ir.OutputInput
		}
		if !dir.IsValid() {
			return nil, &CompileError{
				Field:   "direction",
				Message: fmt.Sprintf("parameter %s: direction must be input or output, got %q", name, dirText),
				Pos:     pv.Pos(),
			}
		}

		params = append(params, Param{Name: name, Type: typ, Direction: dir})
	}
	return params, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a list of strings", field),
			Pos:     fv.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("%s must be a list of strings", field),
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
