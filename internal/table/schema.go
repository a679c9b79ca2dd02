package table

import "credit-exposure-reconciler/pkg/errors"

// SchemaCheck is the result of checking a table for required columns
// once on stage entry.
type SchemaCheck struct {
	Table    string
	Required []string
	Missing  []string
}

// Check reports which of the required columns are absent
func (t *Table) Check(required ...string) SchemaCheck {
	name := ""
	if t != nil {
		name = t.Name
	}
	sc := SchemaCheck{Table: name, Required: required}
	for _, c := range required {
		if !t.Has(c) {
			sc.Missing = append(sc.Missing, c)
		}
	}
	return sc
}

// OK reports whether every required column is present
func (sc SchemaCheck) OK() bool {
	return len(sc.Missing) == 0
}

// Err returns the missing-column error, or nil when the check passed
func (sc SchemaCheck) Err() *errors.ReconcilerError {
	if sc.OK() {
		return nil
	}
	name := sc.Table
	if name == "" {
		name = "input table"
	}
	return errors.MissingColumnsError(name, sc.Missing)
}
