package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"index-coordinator/internal/database"
	"index-coordinator/internal/errs"
	"index-coordinator/internal/model"
	"index-coordinator/pkg/logger"
)

// ErrProjectExists is returned when a project key is registered twice.
var ErrProjectExists = errors.New("project already exists")

// ProjectRepository 项目数据访问层
type ProjectRepository interface {
	// CreateProject 注册项目
	CreateProject(ctx context.Context, project *model.Project) error
	// GetProject 根据key获取项目
	GetProject(ctx context.Context, projectKey string) (*model.Project, error)
	// DeleteProject 删除项目
	DeleteProject(ctx context.Context, projectKey string) error
	// ListProjects 列出所有项目
	ListProjects(ctx context.Context) ([]*model.Project, error)
	// ListProjectKeys 按注册顺序列出所有项目key
	ListProjectKeys(ctx context.Context) ([]string, error)
}

type projectRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewProjectRepository 创建项目Repository
func NewProjectRepository(db database.DatabaseManager, logger logger.Logger) ProjectRepository {
	return &projectRepository{
		db:     db,
		logger: logger,
	}
}

func (r *projectRepository) CreateProject(ctx context.Context, project *model.Project) error {
	if project == nil || strings.TrimSpace(project.ProjectKey) == "" {
		return errs.NewMissingParamError("projectKey")
	}

	now := time.Now()
	result, err := r.db.GetDB().ExecContext(ctx,
		`INSERT INTO projects (project_key, project_name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		project.ProjectKey, project.ProjectName, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("[DB] %w: %s", ErrProjectExists, project.ProjectKey)
		}
		return fmt.Errorf("[DB] failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("[DB] failed to get last insert ID: %w", err)
	}

	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (r *projectRepository) GetProject(ctx context.Context, projectKey string) (*model.Project, error) {
	row := r.db.GetDB().QueryRowContext(ctx,
		`SELECT id, project_key, project_name, created_at, updated_at FROM projects WHERE project_key = ?`,
		projectKey,
	)

	var project model.Project
	if err := row.Scan(&project.ID, &project.ProjectKey, &project.ProjectName,
		&project.CreatedAt, &project.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewRecordNotFoundErr("project", projectKey)
		}
		return nil, fmt.Errorf("[DB] failed to get project: %w", err)
	}
	return &project, nil
}

func (r *projectRepository) DeleteProject(ctx context.Context, projectKey string) error {
	result, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM projects WHERE project_key = ?`, projectKey)
	if err != nil {
		return fmt.Errorf("[DB] failed to delete project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("[DB] failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return errs.NewRecordNotFoundErr("project", projectKey)
	}
	return nil
}

func (r *projectRepository) ListProjects(ctx context.Context) ([]*model.Project, error) {
	rows, err := r.db.GetDB().QueryContext(ctx,
		`SELECT id, project_key, project_name, created_at, updated_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		var project model.Project
		if err := rows.Scan(&project.ID, &project.ProjectKey, &project.ProjectName,
			&project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("[DB] failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[DB] failed to iterate projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepository) ListProjectKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.GetDB().QueryContext(ctx, `SELECT project_key FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to list project keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("[DB] failed to scan project key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[DB] failed to iterate project keys: %w", err)
	}
	return keys, nil
}
