package core

import "time"

type Entity string

const (
	EntityTransaction Entity = "transaction"
	EntityCategory    Entity = "category"
	EntityGoal        Entity = "goal"
	EntityUser        Entity = "user"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeEvent describes one committed write.
type ChangeEvent struct {
	Entity    Entity
	Operation Operation
	ID        int64
	At        time.Time
}
