package validation

import (
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-set/v2"

	"github.com/aldoetobex/caseflow/pkg/models"
)

var (
	v *validator.Validate

	// documentTypes are the MIME types accepted for case documents.
	documentTypes = set.From([]string{
		"application/pdf",
		"image/png",
		"image/jpeg",
	})
)

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Custom: one of the lifecycle statuses
	_ = v.RegisterValidation("casestatus", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let omitempty/required handle empty
			return true
		}
		return models.CaseStatus(val).Valid()
	})

	// Custom: accepted document MIME type
	_ = v.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		return IsDocumentType(val)
	})
}

// IsDocumentType reports whether contentType (parameters ignored) is an
// accepted document type.
func IsDocumentType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return documentTypes.Contains(mt)
}

// Validate returns map[field][]messages (Laravel-like)
func Validate(s any) (map[string][]string, error) {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		out := make(map[string][]string)
		for _, e := range ve {
			field := fieldPath(e)

			switch e.Tag() {
			case "required":
				out[field] = append(out[field], "This field is required")

			case "min":
				switch e.Kind() {
				case reflect.String:
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				case reflect.Slice:
					out[field] = append(out[field], fmt.Sprintf("Must contain at least %s items", e.Param()))
				default:
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s", e.Param()))
				}

			case "max":
				switch e.Kind() {
				case reflect.String:
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				case reflect.Slice:
					out[field] = append(out[field], fmt.Sprintf("Must contain at most %s items", e.Param()))
				default:
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s", e.Param()))
				}

			case "oneof":
				out[field] = append(out[field], "Value is not allowed")

			case "uuid", "uuid4":
				out[field] = append(out[field], "Invalid UUID format")

			case "gte":
				out[field] = append(out[field], fmt.Sprintf("Must be greater than or equal to %s", e.Param()))

			case "casestatus":
				out[field] = append(out[field], "Unknown case status")

			case "doctype":
				out[field] = append(out[field], "Only PDF, PNG or JPEG documents are allowed")

			default:
				// Fallback to original error text if we missed a tag
				out[field] = append(out[field], e.Error())
			}
		}
		return out, nil
	}
	return nil, nil
}

// fieldPath is the json path of the failing field without the root struct,
// e.g. "documents[0].mime_type".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}
