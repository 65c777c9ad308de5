// Package validation implements the composable field-validation pipeline used
// by the account workflows: required/format checks plus store-backed
// availability checks, producing ordered, structured field errors.
package validation

import "context"

// FieldError describes a single failed check. It is returned to the caller
// and never persisted.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Errors carries a whole failed validation as one error value, so workflows
// can return it alongside infrastructure errors and callers can recover the
// per-field detail with errors.As.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msg := e[0].Error()
	for _, fe := range e[1:] {
		msg += "; " + fe.Error()
	}
	return msg
}

// Predicate checks one value. A non-nil error is the message shown to the
// caller for the field under validation.
type Predicate func(ctx context.Context, value string) error

// Rule validates one field. Value is a pointer so that "not supplied" and
// "supplied but empty" stay distinguishable: a nil Value skips every check
// unless Required is set.
type Rule struct {
	Field    string
	Value    *string
	Required bool
	Checks   []Predicate
}

// Check runs every rule in order and returns the collected field errors,
// or nil if all rules pass. A rule stops at its first failing check, so a
// field reports at most one error.
func Check(ctx context.Context, rules ...Rule) []FieldError {
	var errs []FieldError

	for _, rule := range rules {
		if rule.Value == nil {
			if rule.Required {
				errs = append(errs, FieldError{Field: rule.Field, Message: "field required"})
			}
			continue
		}
		for _, check := range rule.Checks {
			if err := check(ctx, *rule.Value); err != nil {
				errs = append(errs, FieldError{Field: rule.Field, Message: err.Error()})
				break
			}
		}
	}

	return errs
}

// All composes predicates so that every one must pass. The first failure wins.
func All(checks ...Predicate) Predicate {
	return func(ctx context.Context, value string) error {
		for _, check := range checks {
			if err := check(ctx, value); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any composes predicates so that one passing is enough. If all fail, the
// last failure is reported.
func Any(checks ...Predicate) Predicate {
	return func(ctx context.Context, value string) (err error) {
		for _, check := range checks {
			if err = check(ctx, value); err == nil {
				return nil
			}
		}
		return err
	}
}
