package procedures

import (
	"fmt"
	"time"

	"fds-analytics/internal/models"
)

// ParamType is the SQL type a named parameter is cast to. Casting every
// placeholder keeps NULL arguments typed.
type ParamType string

const (
	TypeDate    ParamType = "date"
	TypeText    ParamType = "text"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

// Param is one named procedure argument. A nil Value is passed as a typed NULL.
type Param struct {
	Name  string
	Type  ParamType
	Value interface{}
}

func (p Param) String() string {
	if p.Value == nil {
		return fmt.Sprintf("%s:%s=NULL", p.Name, p.Type)
	}
	return fmt.Sprintf("%s:%s", p.Name, p.Type)
}

// Date builds a date parameter formatted as YYYY-MM-DD.
func Date(name string, t time.Time) Param {
	return Param{Name: name, Type: TypeDate, Value: t.Format(models.DateLayout)}
}

// NullDate builds a typed NULL date parameter.
func NullDate(name string) Param {
	return Param{Name: name, Type: TypeDate}
}

// Text builds a text parameter.
func Text(name, v string) Param {
	return Param{Name: name, Type: TypeText, Value: v}
}

// OptText builds a text parameter that is NULL when v is nil.
func OptText(name string, v *string) Param {
	if v == nil {
		return Param{Name: name, Type: TypeText}
	}
	return Text(name, *v)
}

// Int builds an integer parameter.
func Int(name string, v int) Param {
	return Param{Name: name, Type: TypeInteger, Value: int64(v)}
}

// NullInt builds a typed NULL integer parameter.
func NullInt(name string) Param {
	return Param{Name: name, Type: TypeInteger}
}

// Bool builds a boolean parameter.
func Bool(name string, v bool) Param {
	return Param{Name: name, Type: TypeBoolean, Value: v}
}
