package model

import (
	"strings"
	"time"
)

// CalculationType names the binary operation a Calculation performs.
type CalculationType string

const (
	TypeAdd      CalculationType = "add"
	TypeSubtract CalculationType = "subtract"
	TypeMultiply CalculationType = "multiply"
	TypeDivide   CalculationType = "divide"
)

// CalculationTypes lists every supported type, in display order.
var CalculationTypes = []CalculationType{TypeAdd, TypeSubtract, TypeMultiply, TypeDivide}

// ParseCalculationType matches s case-insensitively against the supported
// types. The second return is false for anything else.
func ParseCalculationType(s string) (CalculationType, bool) {
	want := strings.ToLower(strings.TrimSpace(s))
	for _, t := range CalculationTypes {
		if string(t) == want {
			return t, true
		}
	}
	return "", false
}

// Calculation is a user-owned arithmetic record.
//
// UserID is fixed at creation. Updates only ever touch A, B and Type.
type Calculation struct {
	ID        string          `json:"id"`
	A         float64         `json:"a"`
	B         float64         `json:"b"`
	Type      CalculationType `json:"type"`
	UserID    string          `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Result applies Type to A and B. ok is false for an unknown type or a
// division by zero.
func (c *Calculation) Result() (result float64, ok bool) {
	switch c.Type {
	case TypeAdd:
		return c.A + c.B, true
	case TypeSubtract:
		return c.A - c.B, true
	case TypeMultiply:
		return c.A * c.B, true
	case TypeDivide:
		if c.B == 0 {
			return 0, false
		}
		return c.A / c.B, true
	}
	return 0, false
}
