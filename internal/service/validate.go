package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/snipshare/internal/apperror"
)

// Languages is the closed set of snippet languages. "text" is the default
// for snippets that don't say.
var Languages = []string{
	"text", "go", "python", "javascript", "typescript", "java", "kotlin",
	"c", "cpp", "csharp", "rust", "ruby", "php", "swift", "shell", "sql",
	"html", "css", "haskell", "lua",
}

var (
	categoryPattern = regexp.MustCompile(`^[a-z0-9+#.-]+$`)
	loginPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
)

// lineEndings folds CRLF and bare CR to LF. Every free-text field goes
// through it so stored text matches what a CSV backup restores.
var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func foldLineEndings(s string) string {
	return lineEndings.Replace(s)
}

// validate is shared by every service. validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so the "field" in an error body
	// matches what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "language", func(fl validator.FieldLevel) bool {
		lang := fl.Field().String()
		for _, l := range Languages {
			if l == lang {
				return true
			}
		}
		return false
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		return categoryPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "login", func(fl validator.FieldLevel) bool {
		return loginPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "httpurl", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("service: registering %q validation: %v", tag, err))
	}
}

// validateStruct runs the struct tags on in and turns the first failure
// into an apperror.ValidationFailed naming the offending field.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("service: validating input: %w", err)
	}

	fe := verrs[0]
	return apperror.ValidationFailed(fieldName(fe), message(fe))
}

// fieldName drops the struct prefix from the namespace, keeping any index:
// "SnippetInput.categories[2]" becomes "categories[2]".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fieldName(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s may have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "url", "httpurl":
		return field + " must be an http or https URL"
	case "language":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(Languages, ", "))
	case "category":
		return field + " may only contain a-z, 0-9, +, #, . and -"
	case "login":
		return field + " must be 3-32 letters, digits, '_' or '-'"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
