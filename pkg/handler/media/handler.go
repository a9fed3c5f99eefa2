/*
 * @Description: 媒体摄取与查询的HTTP接口
 * @Author: 青澜
 * @Date: 2025-09-17 14:20:08
 * @LastEditTime: 2026-04-08 14:35:52
 * @LastEditors: 青澜
 */
package media

import (
	"errors"
	"io"
	"net/http"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/response"
	"github.com/qinglan-dev/qinglan-app/pkg/service/ingest"

	"github.com/gin-gonic/gin"
)

// Handler 处理媒体相关的HTTP请求。
type Handler struct {
	ingestSvc ingest.IngestionCoordinatorService
}

// NewHandler 创建媒体接口处理器。
func NewHandler(ingestSvc ingest.IngestionCoordinatorService) *Handler {
	return &Handler{ingestSvc: ingestSvc}
}

// Upload 处理 POST /api/media 的 multipart 上传。
// 除 file 字段外的全部表单字段都作为调用方元数据透传。
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "缺少 file 字段")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}

	var metadata map[string]string
	if form, formErr := c.MultipartForm(); formErr == nil {
		for key, values := range form.Value {
			if len(values) == 0 {
				continue
			}
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[key] = values[0]
		}
	}

	asset, err := h.ingestSvc.Ingest(c.Request.Context(), data, fileHeader.Filename, metadata)
	if err != nil {
		h.failIngest(c, err)
		return
	}

	response.SuccessWithStatus(c, http.StatusCreated, asset, "上传成功")
}

// Get 处理 GET /api/media/:id。
func (h *Handler) Get(c *gin.Context) {
	asset, err := h.ingestSvc.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, constant.ErrInvalidPublicID):
			response.Fail(c, http.StatusBadRequest, "非法的资产ID")
		case errors.Is(err, constant.ErrNotFound):
			response.Fail(c, http.StatusNotFound, "资产不存在")
		default:
			response.Fail(c, http.StatusInternalServerError, constant.ErrInternalServer.Error())
		}
		return
	}

	response.Success(c, asset, "ok")
}

// failIngest 把摄取错误映射为HTTP状态码。
func (h *Handler) failIngest(c *gin.Context, err error) {
	switch {
	case errors.Is(err, constant.ErrEmptyPayload):
		response.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, constant.ErrUnsupportedMediaType):
		response.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, constant.ErrUndecodableMedia):
		response.Fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, constant.ErrStorageExhausted):
		response.Fail(c, http.StatusServiceUnavailable, "所有存储提供者均不可用，请稍后重试")
	default:
		response.Fail(c, http.StatusInternalServerError, "上传处理失败")
	}
}
