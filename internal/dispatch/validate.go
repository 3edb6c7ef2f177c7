package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/vitaliydpua/appgw/internal/apierror"
)

// Input locations reported in validation error details.
const (
	locationBody    = "body"
	locationQuery   = "query"
	locationParams  = "params"
	locationHeaders = "headers"
)

// ValidationDetails is the structured payload of a validation error.
type ValidationDetails struct {
	// In names the offending location: body, query, params or headers.
	In string `json:"in"`

	// Fields maps field paths to their violation messages.
	Fields map[string]string `json:"fields"`
}

// newValidator builds the validator used for body schemas. It honors
// gin's binding tag and reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// bindInput binds and validates every declared input location, strictly
// after authentication. The first violating location fails the request.
func (d *Dispatcher) bindInput(c *gin.Context, schema *InputSchema, rawBody []byte, req *Request) error {
	if schema == nil {
		return nil
	}

	if schema.Body != nil {
		body := schema.Body()
		if err := d.bindBody(rawBody, body); err != nil {
			return err
		}
		req.Body = body
	}

	if schema.Query != nil {
		query := schema.Query()
		if err := c.ShouldBindQuery(query); err != nil {
			return validationError(locationQuery, err)
		}
		req.Query = query
	}

	if schema.Params != nil {
		params := schema.Params()
		if err := c.ShouldBindUri(params); err != nil {
			return validationError(locationParams, err)
		}
		req.Params = params
	}

	if schema.Headers != nil {
		headers := schema.Headers()
		if err := c.ShouldBindHeader(headers); err != nil {
			return validationError(locationHeaders, err)
		}
		req.Headers = headers
	}

	return nil
}

// bindBody decodes the raw body into the schema struct and validates
// it. The body was read before authentication, so binding works from
// the retained bytes rather than the request stream.
func (d *Dispatcher) bindBody(rawBody []byte, out any) error {
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, out); err != nil {
			return validationError(locationBody, err)
		}
	}
	if err := d.validator.Struct(out); err != nil {
		return validationError(locationBody, err)
	}
	return nil
}

// validationError converts a binding or validation failure into the
// client-facing 400 with per-field details.
func validationError(location string, err error) *apierror.Error {
	fields := make(map[string]string)

	var violations validator.ValidationErrors
	if errors.As(err, &violations) {
		for _, violation := range violations {
			fields[violation.Field()] = violationMessage(violation)
		}
	} else {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			fields[typeErr.Field] = fmt.Sprintf("must be of type %s", typeErr.Type)
		} else {
			fields["_"] = "malformed input"
		}
	}

	return apierror.BadRequest("VALIDATION_FAILED", "input validation failed").
		WithDetails(ValidationDetails{In: location, Fields: fields})
}

// violationMessage renders a single field violation.
func violationMessage(violation validator.FieldError) string {
	if violation.Param() != "" {
		return fmt.Sprintf("failed on the %q rule with parameter %q",
			violation.Tag(), violation.Param())
	}
	return fmt.Sprintf("failed on the %q rule", violation.Tag())
}
