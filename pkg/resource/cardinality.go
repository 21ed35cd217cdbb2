package resource

import (
	"fmt"

	"github.com/openfroyo/detyped/pkg/faults"
)

// Unbounded is the Max of a cardinality with no upper limit.
const Unbounded = -1

// Cardinality bounds the number of children of one type.
type Cardinality struct {
	// Min is the minimum number of children.
	Min int `json:"min"`

	// Max is the maximum number of children, or Unbounded.
	Max int `json:"max"`
}

// Common cardinalities.
var (
	ZeroOne       = Cardinality{Min: 0, Max: 1}
	ZeroUnbounded = Cardinality{Min: 0, Max: Unbounded}
	One           = Cardinality{Min: 1, Max: 1}
	OneUnbounded  = Cardinality{Min: 1, Max: Unbounded}
)

// NewCardinality validates and creates a cardinality.
func NewCardinality(minCount, maxCount int) (Cardinality, error) {
	c := Cardinality{Min: minCount, Max: maxCount}
	if err := c.Validate(); err != nil {
		return Cardinality{}, err
	}
	return c, nil
}

// Validate checks Min >= 0, Max >= -1 and Max >= Min when bounded.
func (c Cardinality) Validate() error {
	if c.Min < 0 {
		return faults.NewSchemaError("invalid min %d, cannot be less than 0", c.Min).WithDetail("field", "min")
	}
	if c.Max < Unbounded {
		return faults.NewSchemaError("invalid max %d, cannot be less than -1", c.Max).WithDetail("field", "max")
	}
	if c.Max != Unbounded && c.Max < c.Min {
		return faults.NewSchemaError("invalid max %d, cannot be less than min %d", c.Max, c.Min).WithDetail("field", "max")
	}
	return nil
}

// IsUnbounded reports whether there is no maximum.
func (c Cardinality) IsUnbounded() bool { return c.Max == Unbounded }

// AllowsAdd reports whether a group of size children may grow by one.
func (c Cardinality) AllowsAdd(size int) bool {
	return c.IsUnbounded() || size+1 <= c.Max
}

// AllowsRemove reports whether a group of size children may shrink by one.
func (c Cardinality) AllowsRemove(size int) bool {
	return size-1 >= c.Min
}

// String returns "min..max" with "*" for unbounded.
func (c Cardinality) String() string {
	if c.IsUnbounded() {
		return fmt.Sprintf("%d..*", c.Min)
	}
	return fmt.Sprintf("%d..%d", c.Min, c.Max)
}
