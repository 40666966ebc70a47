package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Error codes reported by Load. The CLI prints them in JSON output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeProcedureName = "E101" // Invalid procedure name
	ErrCodeStatements    = "E102" // No statements
	ErrCodeInvalidType   = "E103" // Unknown parameter type
	ErrCodeDirection     = "E104" // Invalid parameter direction
	ErrCodeUndeclared    = "E105" // Statement references undeclared parameter
	ErrCodeDuplicate     = "E106" // Duplicate procedure name
)

// LoadError represents an error that occurred while loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult is a loaded catalog plus what was read to build it.
type LoadResult struct {
	Catalog   *Catalog
	CUEValue  cue.Value
	FileCount int
}

// Load reads every .cue file in dir as one CUE package and compiles each
// procedure.<name> entry. All compile errors are collected; the catalog
// holds the procedures that compiled.
func Load(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	cat, errs := compileAll(value)
	return &LoadResult{Catalog: cat, CUEValue: value, FileCount: len(cueFiles)}, errs
}

// CompileString compiles catalog source held in memory, e.g. a catalog
// embedded in a test scenario.
func CompileString(src string) (*Catalog, []error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	return compileAll(value)
}

func compileAll(value cue.Value) (*Catalog, []error) {
	var (
		errs  []error
		procs []Procedure
	)

	procsVal := value.LookupPath(cue.ParsePath("procedure"))
	if !procsVal.Exists() {
		cat, _ := New()
		return cat, []error{&LoadError{Code: ErrCodeGeneric, Message: "no procedures found in catalog"}}
	}

	iter, err := procsVal.Fields()
	if err != nil {
		cat, _ := New()
		return cat, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating procedures: %v", err)}}
	}

	for iter.Next() {
		p, err := CompileProcedure(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "procedure."+iter.Label()))
			continue
		}
		procs = append(procs, *p)
	}

	cat, err := New(procs...)
	if err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeDuplicate, Message: err.Error()})
	}
	return cat, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: context + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return ErrCodeProcedureName
	case "exec":
		return ErrCodeStatements
	case "type":
		return ErrCodeInvalidType
	case "direction":
		return ErrCodeDirection
	case "params":
		return ErrCodeUndeclared
	default:
		return ErrCodeGeneric
	}
}
