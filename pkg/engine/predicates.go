package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// valuePredicate evaluates a predicate on plain Go values. The error return
// is reserved for values the predicate cannot be applied to.
type valuePredicate func(actual, expected interface{}, opts AssertOptions) (bool, error)

var valuePredicates = map[Predicate]valuePredicate{
	ToBe:                   toBe,
	ToEqual:                toEqual,
	ToStrictEqual:          toStrictEqual,
	ToBeCloseTo:            toBeCloseTo,
	ToBeTruthy:             func(a, _ interface{}, _ AssertOptions) (bool, error) { return truthy(a), nil },
	ToBeFalsy:              func(a, _ interface{}, _ AssertOptions) (bool, error) { return !truthy(a), nil },
	ToBeNil:                func(a, _ interface{}, _ AssertOptions) (bool, error) { return isNil(a), nil },
	ToBeNaN:                toBeNaN,
	ToBeGreaterThan:        compareWith(func(a, e float64) bool { return a > e }),
	ToBeGreaterThanOrEqual: compareWith(func(a, e float64) bool { return a >= e }),
	ToBeLessThan:           compareWith(func(a, e float64) bool { return a < e }),
	ToBeLessThanOrEqual:    compareWith(func(a, e float64) bool { return a <= e }),
	ToContain:              toContain,
	ToContainEqual:         toContainEqual,
	ToHaveLength:           toHaveLength,
	ToHaveProperty:         toHaveProperty,
	ToMatch:                toMatch,
	ToMatchObject:          toMatchObject,
	ToBeInstanceOf:         toBeInstanceOf,
	ToThrow:                toThrow,
}

func toBe(actual, expected interface{}, _ AssertOptions) (bool, error) {
	if a, ok := toFloat(actual); ok {
		e, ok := toFloat(expected)
		return ok && a == e, nil
	}
	if actual == nil || expected == nil {
		return isNil(actual) && isNil(expected), nil
	}
	ta, te := reflect.TypeOf(actual), reflect.TypeOf(expected)
	if ta != te || !ta.Comparable() {
		return false, nil
	}
	return actual == expected, nil
}

func toEqual(actual, expected interface{}, _ AssertOptions) (bool, error) {
	a, err := normalize(actual)
	if err != nil {
		return false, err
	}
	e, err := normalize(expected)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(a, e), nil
}

func toStrictEqual(actual, expected interface{}, _ AssertOptions) (bool, error) {
	return reflect.DeepEqual(actual, expected), nil
}

func toBeCloseTo(actual, expected interface{}, opts AssertOptions) (bool, error) {
	a, ok := toFloat(actual)
	if !ok {
		return false, fmt.Errorf("toBeCloseTo needs a number, got %T", actual)
	}
	e, ok := toFloat(expected)
	if !ok {
		return false, fmt.Errorf("toBeCloseTo needs a number to compare with, got %T", expected)
	}
	precision := opts.Precision
	if precision == 0 {
		precision = 2
	}
	return math.Abs(a-e) < math.Pow10(-precision)/2, nil
}

func toBeNaN(actual, _ interface{}, _ AssertOptions) (bool, error) {
	f, ok := toFloat(actual)
	return ok && math.IsNaN(f), nil
}

func compareWith(cmp func(a, e float64) bool) valuePredicate {
	return func(actual, expected interface{}, _ AssertOptions) (bool, error) {
		a, ok := toFloat(actual)
		if !ok {
			return false, fmt.Errorf("ordering needs a number, got %T", actual)
		}
		e, ok := toFloat(expected)
		if !ok {
			return false, fmt.Errorf("ordering needs a number to compare with, got %T", expected)
		}
		return cmp(a, e), nil
	}
}

func toContain(actual, expected interface{}, _ AssertOptions) (bool, error) {
	if s, ok := actual.(string); ok {
		sub, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("a string can only contain a string, got %T", expected)
		}
		return strings.Contains(s, sub), nil
	}
	v := reflect.ValueOf(actual)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return false, fmt.Errorf("toContain needs a string, slice or array, got %T", actual)
	}
	for i := 0; i < v.Len(); i++ {
		if ok, _ := toBe(v.Index(i).Interface(), expected, AssertOptions{}); ok {
			return true, nil
		}
	}
	return false, nil
}

func toContainEqual(actual, expected interface{}, _ AssertOptions) (bool, error) {
	v := reflect.ValueOf(actual)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return false, fmt.Errorf("toContainEqual needs a slice or array, got %T", actual)
	}
	for i := 0; i < v.Len(); i++ {
		ok, err := toEqual(v.Index(i).Interface(), expected, AssertOptions{})
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func toHaveLength(actual, expected interface{}, _ AssertOptions) (bool, error) {
	want, ok := toFloat(expected)
	if !ok {
		return false, fmt.Errorf("toHaveLength needs an integer length, got %T", expected)
	}
	v := reflect.ValueOf(actual)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return float64(v.Len()) == want, nil
	}
	return false, fmt.Errorf("%T has no length", actual)
}

// toHaveProperty walks a dot-separated path. The path comes from
// AssertOptions.Name; when that is empty Expected is the path and only the
// presence of the property is checked.
func toHaveProperty(actual, expected interface{}, opts AssertOptions) (bool, error) {
	path := opts.Name
	checkValue := true
	if path == "" {
		p, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("toHaveProperty needs a property path")
		}
		path, checkValue = p, false
	}
	root, err := normalize(actual)
	if err != nil {
		return false, err
	}
	got, found := lookupPath(root, strings.Split(path, "."))
	if !found || !checkValue {
		return found, nil
	}
	return toEqual(got, expected, opts)
}

func lookupPath(v interface{}, path []string) (interface{}, bool) {
	for _, key := range path {
		switch node := v.(type) {
		case map[string]interface{}:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			v = next
		case []interface{}:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func toMatch(actual, expected interface{}, _ AssertOptions) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("toMatch needs a string, got %T", actual)
	}
	re, err := asRegexp(expected)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func asRegexp(v interface{}) (*regexp.Regexp, error) {
	switch p := v.(type) {
	case *regexp.Regexp:
		return p, nil
	case string:
		return regexp.Compile(p)
	}
	return nil, fmt.Errorf("expected a pattern, got %T", v)
}

// toMatchObject checks that every property of expected is present in actual
// with a matching value. Nested objects match recursively; arrays must match
// element for element.
func toMatchObject(actual, expected interface{}, _ AssertOptions) (bool, error) {
	a, err := normalize(actual)
	if err != nil {
		return false, err
	}
	e, err := normalize(expected)
	if err != nil {
		return false, err
	}
	if _, ok := e.(map[string]interface{}); !ok {
		return false, fmt.Errorf("toMatchObject needs an object to match, got %T", expected)
	}
	return subset(a, e), nil
}

func subset(actual, expected interface{}) bool {
	switch e := expected.(type) {
	case map[string]interface{}:
		a, ok := actual.(map[string]interface{})
		if !ok {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !subset(av, ev) {
				return false
			}
		}
		return true
	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !subset(a[i], e[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

// toBeInstanceOf compares Go types. Expected may be a reflect.Type, a type
// name such as "*url.URL" or "URL", or a value of the wanted type.
func toBeInstanceOf(actual, expected interface{}, _ AssertOptions) (bool, error) {
	if actual == nil {
		return false, nil
	}
	t := reflect.TypeOf(actual)
	switch e := expected.(type) {
	case reflect.Type:
		return t == e || (e.Kind() == reflect.Interface && t.Implements(e)), nil
	case string:
		name := fmt.Sprintf("%T", actual)
		return e == name || e == t.Name() || (t.Kind() == reflect.Ptr && e == t.Elem().Name()), nil
	case nil:
		return false, fmt.Errorf("toBeInstanceOf needs a type")
	}
	return t == reflect.TypeOf(expected), nil
}

// toThrow calls actual, which must be a func() or a func() error. A panic or
// a non-nil error counts as thrown. A string or pattern Expected must match
// the message.
func toThrow(actual, expected interface{}, _ AssertOptions) (bool, error) {
	var thrown error
	switch fn := actual.(type) {
	case func():
		thrown = catch(func() error { fn(); return nil })
	case func() error:
		thrown = catch(fn)
	default:
		return false, fmt.Errorf("toThrow needs a func() or func() error, got %T", actual)
	}
	if thrown == nil {
		return false, nil
	}
	switch e := expected.(type) {
	case nil:
		return true, nil
	case string:
		return strings.Contains(thrown.Error(), e), nil
	case *regexp.Regexp:
		return e.MatchString(thrown.Error()), nil
	}
	return false, fmt.Errorf("toThrow matches a message string or pattern, got %T", expected)
}

func catch(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func truthy(v interface{}) bool {
	if isNil(v) {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalize converts v to its JSON shape so that structurally equal values
// of different Go types compare equal.
func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot compare %T: %w", v, err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
