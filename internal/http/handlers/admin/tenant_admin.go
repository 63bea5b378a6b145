package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/crm-pay/internal/http/handlers/shared"
	"github.com/crm-pay/internal/http/response"
	"github.com/crm-pay/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListTenants 租户列表。
func (h *Handler) ListTenants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	tenants, total, err := h.TenantRepo.List(repository.TenantListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询租户失败", err)
		return
	}
	response.SuccessWithPage(c, tenants, response.BuildPagination(page, pageSize, total))
}

// GetTenant 租户详情。
func (h *Handler) GetTenant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "租户 ID 无效", nil)
		return
	}
	tenant, err := h.TenantRepo.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "查询租户失败", err)
		return
	}
	if tenant == nil {
		respondError(c, response.CodeNotFound, "租户不存在", nil)
		return
	}
	response.Success(c, tenant)
}
