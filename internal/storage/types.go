package storage

// ColType is the declared type of a column. It keeps the exact spelling used in
// CREATE TABLE, so unknown type names survive a save/load cycle unchanged and
// are compared as text by the evaluator.
type ColType string

const (
	IntegerType ColType = "INTEGER"
	FloatType   ColType = "FLOAT"
	TextType    ColType = "TEXT"
)

func (t ColType) String() string { return string(t) }

// IsNumeric reports whether values of this type take part in arithmetic.
func (t ColType) IsNumeric() bool { return t == IntegerType || t == FloatType }

// Column holds column schema information in a table.
type Column struct {
	Name string
	Type ColType
}
