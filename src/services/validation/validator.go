package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/repositories"

	"github.com/go-playground/validator/v10"
)

// Rules maps a field name to a validator tag ("required,min=3") or, for
// nested objects, to another Rules map.
type Rules map[string]any

// Validator checks model data against the rules registered for its type.
type Validator struct {
	mu       sync.RWMutex
	validate *validator.Validate
	rules    map[string]Rules
}

func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		rules:    make(map[string]Rules),
	}
}

// Register sets the rules of entityType, replacing previous ones.
func (v *Validator) Register(entityType string, rules Rules) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[entityType] = rules
}

func (v *Validator) HasRules(entityType string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.rules[entityType]
	return ok
}

// Validate returns a *domain.ValidationError listing every failing field, or
// nil. Types without rules always pass.
func (v *Validator) Validate(entityType string, model *entities.Model) error {
	v.mu.RLock()
	rules, ok := v.rules[entityType]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	failures := v.validate.ValidateMap(model.Fields(), ruleMap(rules))
	if len(failures) == 0 {
		return nil
	}

	validationErr := domain.NewValidationError(nil)
	collectFailures(validationErr, "", failures)
	return validationErr
}

// ruleMap converts nested Rules into the plain maps ValidateMap dives into.
func ruleMap(rules Rules) map[string]any {
	converted := make(map[string]any, len(rules))
	for field, rule := range rules {
		if nested, ok := rule.(Rules); ok {
			converted[field] = ruleMap(nested)
			continue
		}
		converted[field] = rule
	}
	return converted
}

func collectFailures(validationErr *domain.ValidationError, prefix string, failures map[string]any) {
	fields := make([]string, 0, len(failures))
	for field := range failures {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		name := prefix + field

		switch failure := failures[field].(type) {
		case map[string]any:
			collectFailures(validationErr, name+".", failure)
		case error:
			var fieldErrors validator.ValidationErrors
			if !errors.As(failure, &fieldErrors) {
				validationErr.Add(name, failure.Error())
				continue
			}
			for _, fieldError := range fieldErrors {
				validationErr.Add(name, message(fieldError))
			}
		}
	}
}

func message(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fieldError.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fieldError.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fieldError.Param())
	case "email":
		return "must be a valid email"
	}
	if fieldError.Param() != "" {
		return fmt.Sprintf("failed the %s=%s rule", fieldError.Tag(), fieldError.Param())
	}
	return fmt.Sprintf("failed the %s rule", fieldError.Tag())
}

// ValidationInterceptor rejects create and update calls whose model breaks
// the rules, before any transaction is opened.
type ValidationInterceptor struct {
	validator  *Validator
	entityType string
}

func NewValidationInterceptor(validator *Validator, entityType string) *ValidationInterceptor {
	return &ValidationInterceptor{validator: validator, entityType: entityType}
}

func (i *ValidationInterceptor) BeforeProxy(ctx context.Context, inv *repositories.Invocation) error {
	if inv.Method != repositories.MethodCreate && inv.Method != repositories.MethodUpdate {
		return nil
	}

	model, err := repositories.ModelArg(inv.Method, inv.Args, 0)
	if err != nil {
		return err
	}

	entityType := model.GetType()
	if entityType == "" {
		entityType = i.entityType
	}
	return i.validator.Validate(entityType, model)
}

func (i *ValidationInterceptor) AfterProxy(ctx context.Context, inv *repositories.Invocation) {}
