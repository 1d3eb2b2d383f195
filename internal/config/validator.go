package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/pkg/jsonschema"
)

var placeholder = regexp.MustCompile(`\{\{[^{}]+\}\}`)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateCollection validates the collection. Errors are ordered by path.
func ValidateCollection(coll *Collection) []ValidationError {
	var errors []ValidationError

	for name, env := range coll.Environments {
		if env.BaseURL == "" {
			continue
		}
		if _, err := http.ParseURL(ProcessEnvironment(env.BaseURL, MergeEnvironments(coll.Variables, env.Vars))); err != nil && !placeholder.MatchString(env.BaseURL) {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("environments.%s.baseUrl", name),
				Message: err.Error(),
			})
		}
	}

	if len(coll.Requests) == 0 {
		errors = append(errors, ValidationError{
			Path:    "requests",
			Message: "at least one request is required",
		})
	}

	for name, req := range coll.Requests {
		errors = append(errors, validateRequest(coll, name, req)...)
	}

	sort.SliceStable(errors, func(i, j int) bool {
		return errors[i].Path < errors[j].Path
	})
	return errors
}

func validateRequest(coll *Collection, name string, req Request) []ValidationError {
	var errors []ValidationError
	prefix := "requests." + name

	switch {
	case req.URL == "":
		errors = append(errors, ValidationError{
			Path:    prefix + ".url",
			Message: "url is required",
		})
	case strings.Contains(req.URL, "://") && !placeholder.MatchString(req.URL):
		if _, err := http.ParseURL(req.URL); err != nil {
			errors = append(errors, ValidationError{
				Path:    prefix + ".url",
				Message: err.Error(),
			})
		}
	case !strings.Contains(req.URL, "://") && !hasBaseURL(coll):
		errors = append(errors, ValidationError{
			Path:    prefix + ".url",
			Message: "relative url requires an environment with a baseUrl",
		})
	}

	if req.Method != "" {
		if _, err := http.ParseMethod(req.Method); err != nil {
			errors = append(errors, ValidationError{
				Path:    prefix + ".method",
				Message: err.Error(),
			})
		}
	}

	if _, err := bodyText(req.Body); err != nil {
		errors = append(errors, ValidationError{
			Path:    prefix + ".body",
			Message: err.Error(),
		})
	}

	for varName, path := range req.Extract {
		if path == "" {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("%s.extract.%s", prefix, varName),
				Message: "extract path cannot be empty",
			})
		}
	}

	if req.Schema != "" {
		if err := checkSchema(coll.SchemaPath(name)); err != nil {
			errors = append(errors, ValidationError{
				Path:    prefix + ".schema",
				Message: err.Error(),
			})
		}
	}

	return errors
}

func hasBaseURL(coll *Collection) bool {
	for _, env := range coll.Environments {
		if env.BaseURL != "" {
			return true
		}
	}
	return false
}

func checkSchema(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("schema file not found: %s", path)
	}
	_, err := jsonschema.CompileFile(path)
	return err
}

// ValidateEnvironment validates that an environment exists
func ValidateEnvironment(coll *Collection, envName string) error {
	if _, ok := coll.Environments[envName]; !ok {
		return fmt.Errorf("environment not found: %s", envName)
	}
	return nil
}

// ValidateRequest validates that a request exists
func ValidateRequest(coll *Collection, reqName string) error {
	if _, ok := coll.Requests[reqName]; !ok {
		return fmt.Errorf("request not found: %s", reqName)
	}
	return nil
}
