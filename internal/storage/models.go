package storage

import "database/sql"

type Category struct {
	ID   int64
	Name string
}

type Transaction struct {
	ID          int64
	AmountCents int64
	Type        string
	CategoryID  int64
	Date        string
	Note        string
}

type Goal struct {
	ID           int64
	Name         string
	TargetCents  int64
	CurrentCents int64
	CreatedAt    string
	TargetDate   sql.NullString
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    string
}

type Preference struct {
	Key   string
	Value string
}
