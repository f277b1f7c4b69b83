package tools

import "github.com/avelinom/scout/internal/validator"

// Validate checks a parameter struct against its schema tags
func Validate(s interface{}) error {
	return validator.Validate(s)
}
