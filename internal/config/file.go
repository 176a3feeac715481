package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML configuration file. Command line flags override
// every value set here.
type FileConfig struct {
	Source      string   `toml:"source" validate:"omitempty,oneof=netstat kernel file"`
	File        string   `toml:"file" validate:"required_if=Source file"`
	NetstatPath string   `toml:"netstat_path"`
	Timeout     string   `toml:"timeout" validate:"omitempty,duration"`
	TieBreak    []string `toml:"tie_break" validate:"omitempty,unique,dive,oneof=up static order"`
	Format      string   `toml:"format"`
}

// ValidationError is a single invalid field of a config file.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors collects every invalid field of a config file.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "validation failed with %d error(s):", len(ve))
	for i, e := range ve {
		fmt.Fprintf(&sb, "\n  %d. %s: %s", i+1, e.Field, e.Message)
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("duration", validateDuration); err != nil {
		panic(err)
	}
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required_if":
		return "field is required when " + strings.Replace(e.Param(), " ", " is ", 1)
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "unique":
		return "must not contain duplicates"
	case "duration":
		return "must be a positive duration, e.g. 5s"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Validate checks the field constraints of c.
func (c *FileConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, ValidationError{Field: e.Field(), Message: validationMessage(e)})
	}
	return out
}

// LoadFile reads and validates the TOML config file at path. Unknown keys
// are an error.
func LoadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse config file %s at line %d, column %d: %w", path, row, col, err)
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, fmt.Errorf("unknown keys in config file %s:\n%s", path, serr.String())
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Configuration file loaded", "path", path, "source", fc.Source)
	return &fc, nil
}
