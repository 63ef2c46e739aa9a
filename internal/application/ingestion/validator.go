package ingestion

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Rule tags per upload column. Values arrive as strings, so numeric and
// date rules are custom validators that parse before they compare.
var fieldRules = map[string]string{
	"style":        "required,code,min=3,max=50",
	"sku":          "required,code,min=3,max=50",
	"branch":       "required,code,min=3,max=50",
	"channel":      "required,code,min=3,max=50",
	"brand":        "required,namechars,max=255",
	"category":     "required,namechars,max=255",
	"sub_category": "required,namechars,max=255",
	"city":         "required,namechars,max=255",
	"gender":       "required,alphaspace,max=50",
	"size":         "required,namechars,max=50",
	"mrp":          "required,decstr,maxfrac=2,dmin=0.01,dmax=1000000",
	"quantity":     "required,intstr,imin=1,imax=999999",
	"discount":     "required,decstr,maxfrac=2,dmin=0,dmax=1000000",
	"revenue":      "required,decstr,maxfrac=2,dmin=0,dmax=1000000",
	"day":          "required,tsvdate",
}

var (
	codePattern       = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	nameCharsPattern  = regexp.MustCompile(`^[A-Za-z0-9\s&.-]+$`)
	alphaSpacePattern = regexp.MustCompile(`^[A-Za-z\s]+$`)
)

// FieldError reports one failed cell. Message carries the full
// human-readable form written to error artifacts.
type FieldError struct {
	Field   string
	Value   string
	Rule    string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// FieldValidator checks upload cells against the rules bound to their
// column name. Columns without a binding pass unchecked.
type FieldValidator struct {
	validate *validator.Validate
}

// NewFieldValidator builds a validator with the custom TSV rules
// registered. Registration only fails on a blank tag name, so a failure
// here is a programming error and panics like regexp.MustCompile.
func NewFieldValidator() *FieldValidator {
	v := validator.New()

	register := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validator %q: %v", tag, err))
		}
	}

	register("code", matchPattern(codePattern))
	register("namechars", matchPattern(nameCharsPattern))
	register("alphaspace", matchPattern(alphaSpacePattern))
	register("tsvdate", validDate)
	register("intstr", validInt)
	register("imin", intAtLeast)
	register("imax", intAtMost)
	register("decstr", validDecimal)
	register("maxfrac", maxFractionDigits)
	register("dmin", decimalAtLeast)
	register("dmax", decimalAtMost)

	return &FieldValidator{validate: v}
}

// Check validates one cell. Returns nil when the column has no binding
// or the value passes every rule.
func (v *FieldValidator) Check(field, value string) *FieldError {
	rules, ok := fieldRules[field]
	if !ok {
		return nil
	}
	err := v.validate.Var(value, rules)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		rule := verrs[0].Tag()
		display := rule
		if p := verrs[0].Param(); p != "" {
			display = rule + "=" + p
		}
		return &FieldError{
			Field:   field,
			Value:   value,
			Rule:    rule,
			Message: fmt.Sprintf("field '%s' failed validation: %s (value: '%s')", field, display, value),
		}
	}
	return &FieldError{
		Field:   field,
		Value:   value,
		Rule:    "invalid",
		Message: fmt.Sprintf("field '%s' failed validation: %v", field, err),
	}
}

// CheckRow validates every bound cell of a row in header order and
// returns all failures, one per offending cell.
func (v *FieldValidator) CheckRow(row Row, headers []string) []*FieldError {
	var failures []*FieldError
	for _, h := range headers {
		if fe := v.Check(h, row.Value(h)); fe != nil {
			failures = append(failures, fe)
		}
	}
	return failures
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// validDate accepts exactly yyyy-MM-dd. time.Parse alone is lenient
// about digit widths, so the round trip pins the format.
func validDate(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == v
}

func validInt(fl validator.FieldLevel) bool {
	_, err := strconv.Atoi(fl.Field().String())
	return err == nil
}

func intAtLeast(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	if err != nil {
		return false
	}
	bound, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return n >= bound
}

func intAtMost(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	if err != nil {
		return false
	}
	bound, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return n <= bound
}

func validDecimal(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(fl.Field().String())
	return err == nil
}

// maxFractionDigits bounds the digits after the decimal point. The
// decimal exponent is negative for fractional values, so -2 or greater
// means at most two fraction digits.
func maxFractionDigits(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return d.Exponent() >= int32(-limit)
}

func decimalAtLeast(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	bound, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}
	return d.GreaterThanOrEqual(bound)
}

func decimalAtMost(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	bound, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}
	return d.LessThanOrEqual(bound)
}
