package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/oriys/barq/internal/domain"
)

var (
	errValidation = errors.New("validation")

	moduleHandlerPattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+\.[A-Za-z0-9_$][A-Za-z0-9_$.]*$`)
	bareSymbolPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type classifiedError struct {
	kind error
	msg  string
}

func (e *classifiedError) Error() string { return e.msg }
func (e *classifiedError) Unwrap() error { return e.kind }

func validationErrorf(format string, args ...any) error {
	return &classifiedError{kind: errValidation, msg: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err originated from request validation
// (as opposed to a registry or driver failure), so the HTTP layer can map
// it to 400 rather than 500 (spec §7).
func IsValidationError(err error) bool {
	return errors.Is(err, errValidation)
}

func validateRegisterFunctionRequest(req *RegisterFunctionRequest) error {
	req.FuncID = strings.TrimSpace(req.FuncID)
	req.Runtime = strings.TrimSpace(req.Runtime)
	req.Entrypoint = strings.TrimSpace(req.Entrypoint)

	if req.Runtime == "" {
		return validationErrorf("runtime is required")
	}
	rt := domain.Runtime(req.Runtime)
	if !rt.IsValid() {
		return validationErrorf("unsupported runtime tag: %s", req.Runtime)
	}
	if strings.TrimSpace(req.Code) == "" {
		return validationErrorf("code is required")
	}

	if req.Entrypoint == "" {
		req.Entrypoint = defaultEntrypointForRuntime(rt)
	}
	if err := validateEntrypointFormat(rt, req.Entrypoint); err != nil {
		return err
	}
	return nil
}

func defaultEntrypointForRuntime(rt domain.Runtime) string {
	switch rt.Family() {
	case "python":
		return "handler.main"
	case "node":
		return "index.handler"
	default:
		return "main"
	}
}

// validateEntrypointFormat accepts "module.symbol" or a bare symbol
// (resolved against the default module) for Python/Node (spec §4.2.2,
// §4.2.5) and only a bare identifier for Go, whose adapter never splits
// the entrypoint (it passes the event via EVENT instead).
func validateEntrypointFormat(rt domain.Runtime, entrypoint string) error {
	if entrypoint == "" {
		return validationErrorf("entrypoint is required")
	}
	switch rt.Family() {
	case "python", "node":
		if !moduleHandlerPattern.MatchString(entrypoint) && !bareSymbolPattern.MatchString(entrypoint) {
			return validationErrorf("invalid entrypoint for %s: expected '<module>.<symbol>' or a bare symbol", rt)
		}
	case "go":
		if !bareSymbolPattern.MatchString(entrypoint) {
			return validationErrorf("invalid entrypoint for go1.x: expected a bare identifier")
		}
	default:
		return validationErrorf("unsupported runtime family for %s", rt)
	}
	return nil
}
