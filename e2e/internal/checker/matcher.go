package checker

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const floatTolerance = 1e-6

// MatchesExpectation reports whether actual satisfies expected. Strings in
// expected may carry an operator:
//
//	"~pattern"   regular expression against the actual value's text
//	">=0.5"      numeric comparison (>, >=, <, <=, !=)
//	"#>=3"       comparison against the length of a list, map or string
//	"*"          any non-null value
//
// Maps match when every expected key matches. Lists match element-wise on
// the expected prefix; extra actual elements are ignored.
func MatchesExpectation(actual, expected interface{}) (bool, string) {
	return match("", actual, expected)
}

func match(path string, actual, expected interface{}) (bool, string) {
	switch exp := expected.(type) {
	case nil:
		if actual != nil {
			return false, fmt.Sprintf("%sexpected null, got %v", at(path), actual)
		}
		return true, ""

	case string:
		return matchString(path, actual, exp)

	case bool:
		b, ok := actual.(bool)
		if !ok {
			if s, isString := actual.(string); isString {
				parsed, err := strconv.ParseBool(s)
				b, ok = parsed, err == nil
			}
		}
		if !ok || b != exp {
			return false, fmt.Sprintf("%sexpected %v, got %v", at(path), exp, actual)
		}
		return true, ""

	case map[string]interface{}:
		obj, ok := actual.(map[string]interface{})
		if !ok {
			return false, fmt.Sprintf("%sexpected object, got %T", at(path), actual)
		}
		keys := make([]string, 0, len(exp))
		for k := range exp {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, present := obj[k]
			if !present {
				return false, fmt.Sprintf("missing field %s", join(path, k))
			}
			if ok, reason := match(join(path, k), v, exp[k]); !ok {
				return false, reason
			}
		}
		return true, ""

	case []interface{}:
		list, ok := actual.([]interface{})
		if !ok {
			return false, fmt.Sprintf("%sexpected list, got %T", at(path), actual)
		}
		if len(list) < len(exp) {
			return false, fmt.Sprintf("%sexpected at least %d elements, got %d", at(path), len(exp), len(list))
		}
		for i, e := range exp {
			if ok, reason := match(fmt.Sprintf("%s[%d]", path, i), list[i], e); !ok {
				return false, reason
			}
		}
		return true, ""
	}

	want, wantNumeric := toFloat64(expected)
	got, gotNumeric := toFloat64(actual)
	if wantNumeric {
		if !gotNumeric {
			return false, fmt.Sprintf("%sexpected number %v, got %v", at(path), expected, actual)
		}
		if math.Abs(got-want) > floatTolerance {
			return false, fmt.Sprintf("%sexpected %v, got %v", at(path), want, got)
		}
		return true, ""
	}

	if !reflect.DeepEqual(actual, expected) {
		return false, fmt.Sprintf("%sexpected %v, got %v", at(path), expected, actual)
	}
	return true, ""
}

func matchString(path string, actual interface{}, exp string) (bool, string) {
	switch {
	case exp == "*":
		if actual == nil {
			return false, fmt.Sprintf("%sexpected a value, got null", at(path))
		}
		return true, ""

	case strings.HasPrefix(exp, "~"):
		re, err := regexp.Compile(exp[1:])
		if err != nil {
			return false, fmt.Sprintf("%sinvalid pattern %q: %v", at(path), exp[1:], err)
		}
		text := fmt.Sprint(actual)
		if !re.MatchString(text) {
			return false, fmt.Sprintf("%s%q does not match %s", at(path), text, exp[1:])
		}
		return true, ""

	case strings.HasPrefix(exp, "#"):
		n, ok := length(actual)
		if !ok {
			return false, fmt.Sprintf("%scannot take length of %T", at(path), actual)
		}
		return compare(path, float64(n), exp[1:])
	}

	if op, _ := splitOperator(exp); op != "" {
		got, ok := toFloat64(actual)
		if !ok {
			return false, fmt.Sprintf("%sexpected number for %s, got %v", at(path), exp, actual)
		}
		return compare(path, got, exp)
	}

	if fmt.Sprint(actual) != exp {
		return false, fmt.Sprintf("%sexpected %q, got %v", at(path), exp, actual)
	}
	return true, ""
}

// compare evaluates got against an expression like ">=3" or "2"
func compare(path string, got float64, expr string) (bool, string) {
	op, operand := splitOperator(expr)
	if op == "" {
		op, operand = "==", strings.TrimSpace(expr)
	}

	want, err := strconv.ParseFloat(operand, 64)
	if err != nil {
		return false, fmt.Sprintf("%sinvalid comparison %q", at(path), expr)
	}

	var ok bool
	switch op {
	case ">":
		ok = got > want
	case ">=":
		ok = got >= want
	case "<":
		ok = got < want
	case "<=":
		ok = got <= want
	case "!=":
		ok = math.Abs(got-want) > floatTolerance
	case "==":
		ok = math.Abs(got-want) <= floatTolerance
	}
	if !ok {
		return false, fmt.Sprintf("%sexpected %s%v, got %v", at(path), op, want, got)
	}
	return true, ""
}

func splitOperator(expr string) (string, string) {
	for _, op := range []string{">=", "<=", "!=", ">", "<"} {
		if strings.HasPrefix(expr, op) {
			return op, strings.TrimSpace(expr[len(op):])
		}
	}
	return "", expr
}

func length(v interface{}) (int, bool) {
	switch val := v.(type) {
	case []interface{}:
		return len(val), true
	case map[string]interface{}:
		return len(val), true
	case string:
		return len(val), true
	case nil:
		return 0, true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		return f, err == nil
	}
	return 0, false
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func at(path string) string {
	if path == "" {
		return ""
	}
	return path + ": "
}
