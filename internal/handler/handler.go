// internal/handler/handler.go - 管理API处理器
package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"index-coordinator/internal/coordinator"
	"index-coordinator/internal/dto"
	"index-coordinator/internal/errs"
	"index-coordinator/internal/indexer"
	"index-coordinator/internal/model"
	"index-coordinator/internal/repository"
	"index-coordinator/internal/store"
	"index-coordinator/internal/utils"
	"index-coordinator/pkg/logger"
)

// CoordinatorView is the part of the coordinator the admin API reads from.
type CoordinatorView interface {
	Status() coordinator.Status
	ProjectState(projectKey string) (queued, running bool)
	Reserve(projectKey string) (release func(), ok bool)
	Wake()
}

// AdminHandler 管理API处理器
type AdminHandler struct {
	projects    repository.ProjectRepository
	properties  repository.PropertyStore
	indexStore  store.IndexStore
	coordinator CoordinatorView
	logger      logger.Logger
}

// NewAdminHandler 创建管理API处理器
func NewAdminHandler(
	projects repository.ProjectRepository,
	properties repository.PropertyStore,
	indexStore store.IndexStore,
	coordinator CoordinatorView,
	logger logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		projects:    projects,
		properties:  properties,
		indexStore:  indexStore,
		coordinator: coordinator,
		logger:      logger,
	}
}

// CoordinatorStatus 返回调度器当前的队列与运行状态
// @Router /api/v1/coordinator/status [get]
func (h *AdminHandler) CoordinatorStatus(c *gin.Context) {
	utils.Success(c, h.coordinator.Status())
}

// ListProjects 列出已注册项目
// @Router /api/v1/projects [get]
func (h *AdminHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.ListProjects(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list projects: %v", err)
		utils.InternalError(c, errs.ErrInternalServerError, "failed to list projects")
		return
	}

	list := make([]dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		list = append(list, toProjectResponse(p))
	}
	utils.Success(c, list)
}

// CreateProject 注册项目，并唤醒调度器尽快索引
// @Router /api/v1/projects [post]
func (h *AdminHandler) CreateProject(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.BadRequest(c, errs.ErrBadRequest, errs.NewInvalidParamErr("body", err).Error())
		return
	}
	if strings.TrimSpace(req.Key) != req.Key || strings.Contains(req.Key, "/") {
		utils.BadRequest(c, errs.ErrBadRequest, errs.NewInvalidParamErr("key", req.Key).Error())
		return
	}

	project := &model.Project{ProjectKey: req.Key, ProjectName: req.Name}
	if err := h.projects.CreateProject(c.Request.Context(), project); err != nil {
		if errors.Is(err, repository.ErrProjectExists) {
			utils.Conflict(c, errs.ErrProjectExists, err.Error())
			return
		}
		h.logger.Error("failed to create project %s: %v", req.Key, err)
		utils.InternalError(c, errs.ErrInternalServerError, "failed to create project")
		return
	}

	h.logger.Info("project %s registered", project.ProjectKey)
	h.coordinator.Wake()
	utils.Success(c, toProjectResponse(project))
}

// DeleteProject 删除项目及其属性和索引
// 正在排队或索引中的项目不能删除，删除期间项目不会被调度
// @Router /api/v1/projects/{key} [delete]
func (h *AdminHandler) DeleteProject(c *gin.Context) {
	key := c.Param("key")
	ctx := c.Request.Context()

	if _, err := h.projects.GetProject(ctx, key); err != nil {
		h.writeLookupError(c, key, err)
		return
	}

	release, ok := h.coordinator.Reserve(key)
	if !ok {
		utils.Conflict(c, errs.ErrProjectBusy, "project is queued or being indexed: "+key)
		return
	}
	defer release()

	if err := h.projects.DeleteProject(ctx, key); err != nil {
		h.writeLookupError(c, key, err)
		return
	}
	if err := h.properties.DeleteProperties(ctx, key); err != nil {
		h.logger.Error("failed to delete properties of %s: %v", key, err)
		utils.InternalError(c, errs.ErrInternalServerError, "failed to delete project properties")
		return
	}
	if err := h.indexStore.DeleteProject(ctx, key); err != nil {
		h.logger.Error("failed to delete index of %s: %v", key, err)
		utils.InternalError(c, errs.ErrInternalServerError, "failed to delete project index")
		return
	}

	h.logger.Info("project %s deleted", key)
	utils.Success(c, dto.DeleteProjectResponse{Key: key, Deleted: true})
}

// ProjectStatus 返回项目最近一次索引的开始和结束时间
// @Router /api/v1/projects/{key}/status [get]
func (h *AdminHandler) ProjectStatus(c *gin.Context) {
	key := c.Param("key")
	ctx := c.Request.Context()

	project, err := h.projects.GetProject(ctx, key)
	if err != nil {
		h.writeLookupError(c, key, err)
		return
	}

	resp := dto.ProjectStatusResponse{Key: project.ProjectKey, Name: project.ProjectName}
	if resp.LastIndexUpdateStartDate, err = h.readDatetime(c, key, coordinator.PropertyLastIndexUpdateStartDate); err != nil {
		return
	}
	if resp.LastIndexUpdateEndDate, err = h.readDatetime(c, key, indexer.PropertyLastIndexUpdateEndDate); err != nil {
		return
	}
	resp.Queued, resp.Running = h.coordinator.ProjectState(key)

	utils.Success(c, resp)
}

func (h *AdminHandler) readDatetime(c *gin.Context, key, property string) (*time.Time, error) {
	value, ok, err := h.properties.ReadDatetime(c.Request.Context(), key, property)
	if err != nil {
		h.logger.Error("failed to read %s of %s: %v", property, key, err)
		utils.InternalError(c, errs.ErrInternalServerError, "failed to read project properties")
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &value, nil
}

func (h *AdminHandler) writeLookupError(c *gin.Context, key string, err error) {
	if errors.Is(err, errs.ErrRecordNotFound) {
		utils.NotFound(c, errs.ErrProjectNotFound, "project not found: "+key)
		return
	}
	h.logger.Error("failed to look up project %s: %v", key, err)
	utils.InternalError(c, errs.ErrInternalServerError, "")
}

func toProjectResponse(p *model.Project) dto.ProjectResponse {
	return dto.ProjectResponse{
		Key:       p.ProjectKey,
		Name:      p.ProjectName,
		CreatedAt: p.CreatedAt,
	}
}
