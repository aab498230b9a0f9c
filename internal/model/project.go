package model

import "time"

// Project 项目数据模型
type Project struct {
	ID          int64     `json:"id" db:"id"`
	ProjectKey  string    `json:"projectKey" db:"project_key"`
	ProjectName string    `json:"projectName" db:"project_name"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectProperty is one named timestamp stored for a project.
type ProjectProperty struct {
	ProjectKey   string    `json:"projectKey" db:"project_key"`
	PropertyName string    `json:"propertyName" db:"property_name"`
	Value        time.Time `json:"value" db:"value_unix_ms"`
}
