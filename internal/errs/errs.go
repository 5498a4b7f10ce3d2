// Package errs defines the error kinds shared by both pipelines.
//
// Callers classify failures with errors.As:
//
//	var cfgErr *errs.ConfigurationError
//	if errors.As(err, &cfgErr) { ... }
package errs

import "fmt"

// ConfigurationError reports an invalid or missing required setting. It is
// always fatal and raised before any work that depends on the setting.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// Configf builds a ConfigurationError for setting with a formatted reason.
func Configf(setting, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Reason: fmt.Sprintf(format, args...)}
}

// DependencyUnavailable reports that an optional collaborator (backbone
// library, host registry, explainer) could not be obtained.
type DependencyUnavailable struct {
	Dependency string
	Reason     string
}

func (e *DependencyUnavailable) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %s", e.Dependency, e.Reason)
}

// ExternalLibraryError wraps a failure raised by a delegated call such as
// training, plotting or serialisation.
type ExternalLibraryError struct {
	Op  string
	Err error
}

func (e *ExternalLibraryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalLibraryError) Unwrap() error { return e.Err }

// External wraps err as an ExternalLibraryError for op. A nil err stays nil.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalLibraryError{Op: op, Err: err}
}
