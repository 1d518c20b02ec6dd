package handle

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	ctxPkg "github.com/yeisme/syncvault/pkg/context"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/types"
	"github.com/yeisme/syncvault/pkg/log"
)

// uploadField multipart 表单中文件字段名.
const uploadField = "file"

var errNoFilePart = errors.New("missing multipart field \"file\"")

// UploadFile 流式接收 multipart 上传，写入本地并登记记录；复制在后台进行.
//
//	@Summary		上传文件
//	@Tags			文件
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file						true	"上传的文件"
//	@Success		200		{object}	types.UploadFileResponse	"上传成功"
//	@Failure		400		{object}	types.ErrorResponse			"请求参数错误"
//	@Failure		413		{object}	types.ErrorResponse			"文件过大"
//	@Failure		500		{object}	types.ErrorResponse			"本地写入失败"
//	@Router			/files/upload [post]
func UploadFile(c *gin.Context) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("files"))

	svc := ctxPkg.GetFileService(c.Request.Context())
	if svc == nil {
		unavailable(c, "file service")
		return
	}

	part, err := filePart(c)
	if err != nil {
		l.Warn().Err(err).Msg("invalid upload request")
		writeFileError(c, l, err)

		return
	}
	defer part.Close()

	rec, err := svc.Upload(c.Request.Context(), service.UploadInput{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		writeFileError(c, l, err)
		return
	}

	c.JSON(http.StatusOK, types.UploadFileResponse{
		UID:         rec.UID,
		Filename:    rec.OriginalName,
		Size:        rec.Size,
		ContentType: rec.ContentType,
		Checksum:    rec.Checksum,
	})
}

// filePart 定位到名为 file 的表单项，不把整个请求体缓存到内存或临时文件.
func filePart(c *gin.Context) (*multipart.Part, error) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("read multipart: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}

		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}

		if p.FormName() == uploadField && p.FileName() != "" {
			return p, nil
		}

		_ = p.Close()
	}
}

// GetFile 查询文件元数据，同时确认本地文件存在.
//
//	@Summary		查询文件
//	@Tags			文件
//	@Produce		json
//	@Param			uid	path		string					true	"文件 UID"
//	@Success		200	{object}	types.GetFileResponse	"文件存在"
//	@Failure		404	{object}	types.ErrorResponse		"记录或本地文件不存在"
//	@Router			/files/{uid} [get]
func GetFile(c *gin.Context) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("files"))

	svc := ctxPkg.GetFileService(c.Request.Context())
	if svc == nil {
		unavailable(c, "file service")
		return
	}

	rec, err := svc.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		writeFileError(c, l, err)
		return
	}

	c.JSON(http.StatusOK, types.GetFileResponse{
		Message: fmt.Sprintf("File %s is available", rec.OriginalName),
		File:    types.NewFileInfo(rec),
	})
}

// DownloadFile 从本地存储读取文件内容，支持 Range.
//
//	@Summary		下载文件
//	@Tags			文件
//	@Produce		application/octet-stream
//	@Param			uid	path	string	true	"文件 UID"
//	@Success		200	{file}	file	"文件内容"
//	@Failure		404	{object}	types.ErrorResponse	"记录或本地文件不存在"
//	@Router			/files/{uid}/download [get]
func DownloadFile(c *gin.Context) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("files"))

	svc := ctxPkg.GetFileService(c.Request.Context())
	if svc == nil {
		unavailable(c, "file service")
		return
	}

	rec, f, err := svc.Open(c.Request.Context(), c.Param("uid"))
	if err != nil {
		writeFileError(c, l, err)
		return
	}
	defer f.Close()

	if rec.ContentType != "" {
		c.Header("Content-Type", rec.ContentType)
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.OriginalName}))
	http.ServeContent(c.Writer, c.Request, rec.OriginalName, rec.UpdatedAt, f)
}

// ListFiles 分页列出文件，按创建时间倒序.
//
//	@Summary		列出文件
//	@Tags			文件
//	@Produce		json
//	@Param			page	query		int						false	"页码，从 1 开始"
//	@Param			size	query		int						false	"每页数量，最大 100"
//	@Success		200		{object}	types.ListFilesResponse	"分页结果"
//	@Failure		400		{object}	types.ErrorResponse		"请求参数错误"
//	@Router			/files [get]
func ListFiles(c *gin.Context) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("files"))

	svc := ctxPkg.GetFileService(c.Request.Context())
	if svc == nil {
		unavailable(c, "file service")
		return
	}

	var req types.ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		l.Warn().Err(err).Msg("invalid list request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	res, err := svc.List(c.Request.Context(), req.Page, req.Size)
	if err != nil {
		writeFileError(c, l, err)
		return
	}

	files := make([]types.FileInfo, 0, len(res.Items))
	for i := range res.Items {
		files = append(files, types.NewFileInfo(&res.Items[i]))
	}

	c.JSON(http.StatusOK, types.ListFilesResponse{Files: files, Total: res.Total, Page: res.Page, Size: res.Size})
}

// DeleteFile 删除本地文件、远端对象与记录.
//
//	@Summary		删除文件
//	@Tags			文件
//	@Produce		json
//	@Param			uid	path		string					true	"文件 UID"
//	@Success		200	{object}	types.MessageResponse	"删除成功"
//	@Failure		404	{object}	types.ErrorResponse		"记录不存在"
//	@Failure		502	{object}	types.ErrorResponse		"远端删除失败，记录保留"
//	@Router			/files/{uid} [delete]
func DeleteFile(c *gin.Context) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("files"))

	svc := ctxPkg.GetFileService(c.Request.Context())
	if svc == nil {
		unavailable(c, "file service")
		return
	}

	if err := svc.Delete(c.Request.Context(), c.Param("uid")); err != nil {
		writeFileError(c, l, err)
		return
	}

	c.JSON(http.StatusOK, types.MessageResponse{Message: "File deleted successfully"})
}

// writeFileError 把服务层错误映射为 HTTP 状态码.
func writeFileError(c *gin.Context, l zerolog.Logger, err error) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		l.Warn().Int64("limit", tooLarge.Limit).Msg("upload exceeds size limit")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	case errors.Is(err, service.ErrMissingOnDisk):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found on disk"})
	case errors.Is(err, service.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
	case errors.Is(err, errNoFilePart), errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrLocalWrite):
		l.Error().Err(err).Msg("local write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LocalWriteFailure"})
	case errors.Is(err, service.ErrRemoteDelete):
		l.Error().Err(err).Msg("remote delete failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete remote object"})
	default:
		l.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
