// Package validation rejects malformed requests before authentication,
// using per-rule CEL expressions evaluated against request attributes.
package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/pathmatch"
)

// RuleSpec is one validation rule before compilation. The expression
// must evaluate to a boolean; false rejects the request.
//
// Expressions see: method, path, clientIp (strings), headers and query
// (string maps holding first values, header names lowercased), and
// bodySize (int).
type RuleSpec struct {
	ID          string
	PathPattern string
	Methods     []string
	Enabled     bool
	Priority    int
	Expression  string
	Message     string
}

type rule struct {
	spec    RuleSpec
	program cel.Program
}

func (r *rule) appliesTo(method, path string) bool {
	if !r.spec.Enabled {
		return false
	}
	if len(r.spec.Methods) > 0 {
		found := false
		for _, m := range r.spec.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return pathmatch.Match(r.spec.PathPattern, path)
}

// Validator evaluates compiled validation rules.
type Validator struct {
	logger              observability.Logger
	maxBodyBytes        int64
	requiredHeaders     []string
	allowedContentTypes []string

	mu    sync.RWMutex
	env   *cel.Env
	rules []*rule
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithMaxBodyBytes rejects requests with larger bodies. Zero disables
// the check.
func WithMaxBodyBytes(n int64) ValidatorOption {
	return func(v *Validator) {
		v.maxBodyBytes = n
	}
}

// WithRequiredHeaders rejects requests missing any of the given headers.
func WithRequiredHeaders(names []string) ValidatorOption {
	return func(v *Validator) {
		v.requiredHeaders = names
	}
}

// WithAllowedContentTypes restricts the Content-Type of requests that
// carry a body. Media type parameters (charset etc.) are ignored.
func WithAllowedContentTypes(types []string) ValidatorOption {
	return func(v *Validator) {
		v.allowedContentTypes = types
	}
}

// NewValidator compiles the given rules. A rule that fails to compile
// fails construction rather than being silently skipped.
func NewValidator(specs []RuleSpec, opts ...ValidatorOption) (*Validator, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	v := &Validator{
		logger: observability.NopLogger(),
		env:    env,
	}

	for _, opt := range opts {
		opt(v)
	}

	rules, err := compileRules(env, specs)
	if err != nil {
		return nil, err
	}
	v.rules = rules

	return v, nil
}

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("clientIp", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("bodySize", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func compileRules(env *cel.Env, specs []RuleSpec) ([]*rule, error) {
	rules := make([]*rule, 0, len(specs))

	for _, spec := range specs {
		ast, issues := env.Compile(spec.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: failed to compile expression: %w", spec.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %s: expression must evaluate to a boolean, got %s", spec.ID, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: failed to build program: %w", spec.ID, err)
		}

		rules = append(rules, &rule{spec: spec, program: program})
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].spec.Priority < rules[j].spec.Priority
	})

	return rules, nil
}

// UpdateRules recompiles and swaps the rule set. Used on reload.
func (v *Validator) UpdateRules(specs []RuleSpec) error {
	rules, err := compileRules(v.env, specs)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules = rules
	return nil
}

// Validate checks a request against the body bound and all matching
// rules in priority order. The first failing rule rejects the request.
func (v *Validator) Validate(
	method, path, clientIP string,
	headers http.Header,
	query url.Values,
	bodySize int64,
) *apierror.Error {
	if v.maxBodyBytes > 0 && bodySize > v.maxBodyBytes {
		return apierror.New(apierror.KindBadRequest, apierror.CodeValidationFailed,
			fmt.Sprintf("request body exceeds %d bytes", v.maxBodyBytes))
	}

	for _, name := range v.requiredHeaders {
		if headers.Get(name) == "" {
			return apierror.New(apierror.KindBadRequest, apierror.CodeValidationFailed,
				fmt.Sprintf("missing required header %s", name))
		}
	}

	if len(v.allowedContentTypes) > 0 && bodySize > 0 {
		if !v.contentTypeAllowed(headers.Get("Content-Type")) {
			return apierror.New(apierror.KindBadRequest, apierror.CodeValidationFailed,
				"unsupported content type")
		}
	}

	v.mu.RLock()
	rules := v.rules
	v.mu.RUnlock()

	var input map[string]interface{}

	for _, r := range rules {
		if !r.appliesTo(method, path) {
			continue
		}

		if input == nil {
			input = map[string]interface{}{
				"method":   method,
				"path":     path,
				"clientIp": clientIP,
				"headers":  flattenHeaders(headers),
				"query":    flattenQuery(query),
				"bodySize": bodySize,
			}
		}

		out, _, err := r.program.Eval(input)
		if err != nil {
			// Evaluation errors (e.g. missing map keys) reject the
			// request like a false result.
			v.logger.Debug("validation expression error",
				observability.String("rule_id", r.spec.ID),
				observability.Error(err),
			)
			return v.ruleError(r)
		}

		if out != types.True {
			return v.ruleError(r)
		}
	}

	return nil
}

func (v *Validator) contentTypeAllowed(contentType string) bool {
	mediaType := contentType
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	for _, allowed := range v.allowedContentTypes {
		if mediaType == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (v *Validator) ruleError(r *rule) *apierror.Error {
	message := r.spec.Message
	if message == "" {
		message = "request failed validation"
	}
	return apierror.New(apierror.KindBadRequest, apierror.CodeValidationFailed, message)
}

func flattenHeaders(headers http.Header) map[string]string {
	m := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			m[strings.ToLower(name)] = values[0]
		}
	}
	return m
}

func flattenQuery(query url.Values) map[string]string {
	m := make(map[string]string, len(query))
	for name, values := range query {
		if len(values) > 0 {
			m[name] = values[0]
		}
	}
	return m
}
