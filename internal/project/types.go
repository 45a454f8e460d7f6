package project

import "github.com/nerrad567/area-core/internal/entity"

// Project groups areas and devices under one owner.
type Project struct {
	entity.Base
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      int64  `json:"userId"`
}

// Table is the SQL table projects live in.
const Table = "projects"
