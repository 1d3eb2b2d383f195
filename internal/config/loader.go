package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/revere-dev/webrequest/http"
)

// Collection represents a file of named requests
type Collection struct {
	Environments map[string]Environment `json:"environments,omitempty" yaml:"environments,omitempty"`
	Variables    map[string]string      `json:"variables,omitempty" yaml:"variables,omitempty"`
	Requests     map[string]Request     `json:"requests" yaml:"requests"`

	// dir is the directory of the file the collection was loaded from
	dir string
}

// Environment represents an environment configuration
type Environment struct {
	BaseURL string            `json:"baseUrl" yaml:"baseUrl"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Vars    map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Request represents a request configuration
type Request struct {
	URL              string            `json:"url" yaml:"url"`
	Method           string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams      map[string]string `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	Body             interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	ConnectTimeoutMs *int              `json:"connectTimeoutMs,omitempty" yaml:"connectTimeoutMs,omitempty"`
	ReadTimeoutMs    *int              `json:"readTimeoutMs,omitempty" yaml:"readTimeoutMs,omitempty"`
	Extract          map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`
	Schema           string            `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// LoadCollection loads a collection file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadCollection(path string) (*Collection, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("collection file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading collection file: %w", err)
	}

	coll, err := ParseCollection(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	coll.dir = GetConfigDir(path)
	return coll, nil
}

// ParseCollection decodes data in the format named by ext.
func ParseCollection(data []byte, ext string) (*Collection, error) {
	var coll Collection
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &coll); err != nil {
			return nil, fmt.Errorf("error parsing collection file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &coll); err != nil {
			return nil, fmt.Errorf("error parsing collection file: %w", err)
		}
	}
	return &coll, nil
}

// RequestNames returns the names of all requests in sorted order.
func (c *Collection) RequestNames() []string {
	names := make([]string, 0, len(c.Requests))
	for name := range c.Requests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveVariables resolves the variable set for envName. Collection variables are
// overridden by environment variables, which are overridden by overrides.
func (c *Collection) ResolveVariables(envName string, overrides map[string]string) (map[string]string, error) {
	vars := MergeEnvironments(nil, c.Variables)
	if envName != "" {
		env, ok := c.Environments[envName]
		if !ok {
			return nil, fmt.Errorf("environment not found: %s", envName)
		}
		vars = MergeEnvironments(vars, env.Vars)
	}
	return MergeEnvironments(vars, overrides), nil
}

// Builder turns the named request into a RequestBuilder with variables
// substituted. Relative URLs are resolved against the environment's baseUrl.
// Configuration errors are left on the builder.
func (c *Collection) Builder(name, envName string, overrides map[string]string) (*http.RequestBuilder, error) {
	req, ok := c.Requests[name]
	if !ok {
		return nil, fmt.Errorf("request not found: %s", name)
	}

	vars, err := c.ResolveVariables(envName, overrides)
	if err != nil {
		return nil, err
	}

	var env Environment
	if envName != "" {
		env = c.Environments[envName]
	}

	rawURL, err := buildURL(env.BaseURL, req, vars)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", name, err)
	}

	b := http.NewRequestBuilder().URL(rawURL)
	if req.Method != "" {
		b.Method(req.Method)
	}

	headers := MergeEnvironments(ProcessEnvironmentInMap(env.Headers, vars), ProcessEnvironmentInMap(req.Headers, vars))
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.Header(key, headers[key])
	}

	body, err := bodyText(req.Body)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", name, err)
	}
	if body != "" {
		b.Body(ProcessEnvironment(body, vars))
	}

	if req.ConnectTimeoutMs != nil {
		b.ConnectTimeout(*req.ConnectTimeoutMs)
	}
	if req.ReadTimeoutMs != nil {
		b.ReadTimeout(*req.ReadTimeoutMs)
	}
	return b, nil
}

// SchemaPath returns the schema file of the named request, resolved against
// the collection's directory. It is empty when the request has no schema.
func (c *Collection) SchemaPath(name string) string {
	schema := c.Requests[name].Schema
	if schema == "" || filepath.IsAbs(schema) {
		return schema
	}
	return filepath.Join(c.dir, schema)
}

func buildURL(baseURL string, req Request, vars map[string]string) (string, error) {
	raw := ProcessEnvironment(req.URL, vars)
	if !strings.Contains(raw, "://") && baseURL != "" {
		raw = strings.TrimSuffix(ProcessEnvironment(baseURL, vars), "/") + "/" + strings.TrimPrefix(raw, "/")
	}
	if len(req.QueryParams) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		// Left for the builder to report with its own message.
		return raw, nil
	}
	query := u.Query()
	for key, value := range ProcessEnvironmentInMap(req.QueryParams, vars) {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// bodyText renders a body as text: strings are sent as-is, anything else is
// encoded as JSON.
func bodyText(body interface{}) (string, error) {
	switch v := body.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			return "", fmt.Errorf("error encoding body: %w", err)
		}
		return string(data), nil
	}
}

// normalizeYAML converts map[interface{}]interface{} values, which
// encoding/json cannot marshal, into map[string]interface{}.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for key, value := range t {
			m[fmt.Sprint(key)] = normalizeYAML(value)
		}
		return m
	case map[string]interface{}:
		for key, value := range t {
			t[key] = normalizeYAML(value)
		}
		return t
	case []interface{}:
		for i, value := range t {
			t[i] = normalizeYAML(value)
		}
		return t
	default:
		return v
	}
}

// ProcessEnvironment processes environment variables in a string
func ProcessEnvironment(input string, env map[string]string) string {
	result := input

	for key, value := range env {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}

	return result
}

// ProcessEnvironmentInMap processes environment variables in a map
func ProcessEnvironmentInMap(input map[string]string, env map[string]string) map[string]string {
	result := make(map[string]string)

	for key, value := range input {
		result[key] = ProcessEnvironment(value, env)
	}

	return result
}

// MergeEnvironments merges two environments, with the second taking precedence
func MergeEnvironments(base, override map[string]string) map[string]string {
	result := make(map[string]string)

	for key, value := range base {
		result[key] = value
	}

	for key, value := range override {
		result[key] = value
	}

	return result
}

// GetConfigDir returns the directory containing the config file
func GetConfigDir(configPath string) string {
	return filepath.Dir(configPath)
}
