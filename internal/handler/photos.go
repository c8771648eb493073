package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteerhub/internal/model"
	"volunteerhub/internal/photos"
)

const maxUploadBytes = 8 << 20

func (h *Handler) ListPhotos(c *gin.Context) {
	list, err := h.photos.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": list})
}

func (h *Handler) AddPhoto(c *gin.Context) {
	var in photos.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.photos.Add(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePhoto(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
		EventName   string `json:"eventName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.photos.Update(c.Request.Context(), c.Param("id"), req.Description, req.EventName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePhoto(c *gin.Context) {
	if _, err := h.photos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload accepts a multipart "file" and returns where the image now lives.
func (h *Handler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file field required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		badRequest(c, "read file failed")
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	url, publicID, err := h.photos.Upload(c.Request.Context(), data, header.Filename)
	if errors.Is(err, model.ErrInvalidPhoto) {
		h.fail(c, err)
		return
	}
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "image upload failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "publicId": publicID})
}
