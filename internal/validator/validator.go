// Package validator checks tool parameter structs against their schema
// tags. Tool parameters are flat structs of plain inputs, so only the
// rules that shape can trigger are implemented: required, and min/max
// length on strings.
package validator

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const tagName = "schema"

// Validate checks every exported field of the parameter struct against
// its schema tag. The first violation is returned.
func Validate(params any) error {
	val := reflect.ValueOf(params)
	if val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", val.Kind())
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get(tagName)
		if tag == "" {
			continue
		}
		if err := checkField(val.Field(i), fieldName(field), tag); err != nil {
			return err
		}
	}
	return nil
}

func checkField(value reflect.Value, name, tag string) error {
	rules := strings.Split(tag, ",")

	if isEmpty(value) {
		for _, rule := range rules {
			if strings.TrimSpace(rule) == "required" {
				return fmt.Errorf("field '%s' is required", name)
			}
		}
		return nil
	}

	if value.Kind() != reflect.String {
		return nil
	}
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		switch {
		case strings.HasPrefix(rule, "min:"):
			n, err := strconv.Atoi(rule[len("min:"):])
			if err != nil {
				return fmt.Errorf("invalid min length for field '%s': %q", name, rule)
			}
			if len(value.String()) < n {
				return fmt.Errorf("field '%s' must be at least %d characters", name, n)
			}
		case strings.HasPrefix(rule, "max:"):
			n, err := strconv.Atoi(rule[len("max:"):])
			if err != nil {
				return fmt.Errorf("invalid max length for field '%s': %q", name, rule)
			}
			if len(value.String()) > n {
				return fmt.Errorf("field '%s' must be at most %d characters", name, n)
			}
		}
	}
	return nil
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

func fieldName(field reflect.StructField) string {
	if jsonTag := field.Tag.Get("json"); jsonTag != "" {
		if name, _, _ := strings.Cut(jsonTag, ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}
