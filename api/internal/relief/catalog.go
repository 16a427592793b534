package relief

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// MaxOptionBytes bounds an option value so that it still fits into a
// button payload together with its step name.
const MaxOptionBytes = 56

// Catalog holds the fixed option sets offered by the wizard.
type Catalog struct {
	TimeSlots []string `yaml:"time_slots"`
	Teachers  []string `yaml:"teachers"`
	Classes   []string `yaml:"classes"`
	Subjects  []string `yaml:"subjects"`
}

// DefaultCatalog returns the option sets compiled into the binary.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path; an empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []error
	check := func(name string, opts []string) {
		if len(opts) == 0 {
			errs = append(errs, fmt.Errorf("catalog: %s is empty", name))
		}
		for _, o := range opts {
			if o == "" || len(o) > MaxOptionBytes {
				errs = append(errs, fmt.Errorf("catalog: %s option %q must be 1..%d bytes", name, o, MaxOptionBytes))
			}
		}
	}
	check("time_slots", c.TimeSlots)
	check("teachers", c.Teachers)
	check("classes", c.Classes)
	check("subjects", c.Subjects)
	return errors.Join(errs...)
}

// Options returns the allowed values for a field. The date field has no
// fixed set and returns nil.
func (c *Catalog) Options(f Field) []string {
	switch f {
	case FieldTimeSlot:
		return c.TimeSlots
	case FieldSubstitute, FieldAbsent:
		return c.Teachers
	case FieldClass:
		return c.Classes
	case FieldSubject:
		return c.Subjects
	default:
		return nil
	}
}

// Allows reports whether v is a valid option for f.
func (c *Catalog) Allows(f Field, v string) bool {
	return slices.Contains(c.Options(f), v)
}
