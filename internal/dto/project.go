// internal/dto/project.go - 管理API请求和响应数据结构定义
package dto

import "time"

// CreateProjectRequest 注册项目请求
type CreateProjectRequest struct {
	Key  string `json:"key" binding:"required"`
	Name string `json:"name"`
}

// ProjectResponse 项目信息
type ProjectResponse struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectStatusResponse 项目索引状态
type ProjectStatusResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	// 缺失的时间戳表示项目尚未被调度或尚未完成过索引
	LastIndexUpdateStartDate *time.Time `json:"lastIndexUpdateStartDate,omitempty"`
	LastIndexUpdateEndDate   *time.Time `json:"lastIndexUpdateEndDate,omitempty"`
	Queued                   bool       `json:"queued"`
	Running                  bool       `json:"running"`
}

// DeleteProjectResponse 删除项目结果
type DeleteProjectResponse struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}
