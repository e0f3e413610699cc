// Package validation checks configuration values before a run starts.
//
// It supports struct tag validation (using the validator library) and
// programmatic validation with error collection. Both report a
// CONFIGURATION_ERROR AppError listing every failing field.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    Workers int `mapstructure:"workers" validate:"min=2"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("fields", strings.Join(fields, ","))
//	err := v.Err()
package validation
