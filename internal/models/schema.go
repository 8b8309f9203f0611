package models

import "time"

// Column is a column reported by database introspection.
type Column struct {
	Name string `json:"name" db:"name"`
	Type string `json:"type" db:"type"`
}

// Table is a table reported by database introspection.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnDescription documents the business meaning of one column.
type ColumnDescription struct {
	ID              int64      `json:"id" db:"id"`
	TableName       string     `json:"table_name" db:"table_name"`
	ColumnName      string     `json:"column_name" db:"column_name"`
	Description     string     `json:"description" db:"description"`
	BusinessMeaning string     `json:"business_meaning" db:"business_meaning"`
	DataExamples    StringList `json:"data_examples" db:"data_examples"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// TableDescription documents the purpose of one table.
type TableDescription struct {
	TableName       string    `json:"table_name" db:"table_name"`
	Description     string    `json:"description" db:"description"`
	BusinessPurpose string    `json:"business_purpose" db:"business_purpose"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
