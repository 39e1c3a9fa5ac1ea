package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
	"github.com/spec-kit/team-hierarchy-service/internal/service"
)

const (
	formFileField = "file"
	queryTeam     = "_q"

	headerSnapshotID = "X-Snapshot-ID"
	headerCache      = "X-Cache"
)

// HierarchyHandler exposes the team hierarchy endpoints.
type HierarchyHandler struct {
	hierarchy *service.HierarchyService
	maxBytes  int64
}

// NewHierarchyHandler constructs handler. maxBytes <= 0 disables the per-file limit.
func NewHierarchyHandler(hierarchy *service.HierarchyService, maxBytes int) *HierarchyHandler {
	return &HierarchyHandler{hierarchy: hierarchy, maxBytes: int64(maxBytes)}
}

// Upload handles POST /api/hierarchy.
func (h *HierarchyHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile(formFileField)
	if err != nil {
		return domain.FileError(`Missing "file" upload (multipart/form-data).`)
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".csv") {
		return domain.FileError("Only CSV files are accepted.")
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		return fiber.NewError(http.StatusRequestEntityTooLarge, "uploaded file is too large")
	}

	f, err := file.Open()
	if err != nil {
		return domain.FileError("Cannot read uploaded file.")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return domain.FileError("Cannot read uploaded file.")
	}

	rendered, err := h.hierarchy.Render(c.UserContext(), content, c.Query(queryTeam))
	if err != nil {
		return err
	}
	return writeRendered(c, rendered)
}

// Snapshot handles GET /api/hierarchy/:id.
func (h *HierarchyHandler) Snapshot(c *fiber.Ctx) error {
	rendered, err := h.hierarchy.RenderSnapshot(c.UserContext(), c.Params("id"), c.Query(queryTeam))
	if err != nil {
		return err
	}
	return writeRendered(c, rendered)
}

func writeRendered(c *fiber.Ctx, rendered *service.RenderedHierarchy) error {
	if rendered.SnapshotID != "" {
		c.Set(headerSnapshotID, rendered.SnapshotID)
	}
	if rendered.Cached {
		c.Set(headerCache, "HIT")
	} else {
		c.Set(headerCache, "MISS")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(http.StatusOK).Send(rendered.Body)
}
