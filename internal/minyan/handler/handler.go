package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/service"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/middleware"
)

// Options controls route protection. With a nil Verifier every route is open.
type Options struct {
	Verifier middleware.Verifier
	IsAdmin  func(claims map[string]interface{}) bool
}

type Handler struct {
	svc  *service.Service
	opts Options
}

// RegisterRoutes mounts the page, minyan, participation and profile API under /api.
func RegisterRoutes(r gin.IRouter, svc *service.Service, opts Options) {
	if opts.IsAdmin == nil {
		opts.IsAdmin = middleware.AdminFunc(nil)
	}
	h := &Handler{svc: svc, opts: opts}
	api := r.Group("/api")

	var user, admin []gin.HandlerFunc
	if opts.Verifier != nil {
		user = []gin.HandlerFunc{middleware.AuthMiddleware(opts.Verifier)}
		admin = []gin.HandlerFunc{middleware.AuthMiddleware(opts.Verifier), middleware.RequireAdmin(opts.IsAdmin)}
	}

	api.GET("/pages", h.listPages)
	api.GET("/pages/:id", h.getPage)
	api.POST("/pages", chain(admin, h.createPage)...)
	api.PUT("/pages/:id", chain(admin, h.renamePage)...)
	api.DELETE("/pages/:id", chain(admin, h.deletePage)...)

	api.POST("/pages/:id/minyanim", chain(admin, h.addMinyan)...)
	api.PUT("/pages/:id/minyanim/:minyanId", chain(admin, h.relabelMinyan)...)
	api.DELETE("/pages/:id/minyanim/:minyanId", chain(admin, h.removeMinyan)...)

	api.GET("/participants", h.listParticipants)
	api.POST("/register", chain(user, h.register)...)
	api.POST("/unregister", chain(user, h.unregister)...)

	api.POST("/profile", chain(user, h.setProfile)...)
	api.GET("/profile/:uid", h.getProfile)
	api.GET("/users", chain(admin, h.listUsers)...)
	api.GET("/user-profiles", chain(admin, h.listProfiles)...)
}

func chain(guards []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, h)
}

// bind decodes an optional JSON body. An empty body leaves req zero-valued.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// fail maps domain errors to 400/404 and everything else to 500.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.Message(err)})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": service.Message(err)})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// actingFor rejects an authenticated non-admin acting on another user's uid.
func (h *Handler) actingFor(c *gin.Context, uid string) bool {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return true
	}
	if middleware.Subject(claims) == uid {
		return true
	}
	if h.opts.IsAdmin(claims) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Cannot act for another user"})
	return false
}

// ---- pages ----

func (h *Handler) listPages(c *gin.Context) {
	pages, err := h.svc.ListPages(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

func (h *Handler) getPage(c *gin.Context) {
	page, err := h.svc.GetPage(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createPage(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	page, err := h.svc.CreatePage(c.Request.Context(), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "page": page})
}

func (h *Handler) renamePage(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	page, err := h.svc.RenamePage(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "page": page})
}

func (h *Handler) deletePage(c *gin.Context) {
	if err := h.svc.DeletePage(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- minyanim ----

func (h *Handler) addMinyan(c *gin.Context) {
	var req struct {
		MinyanID string `json:"minyanId"`
		Label    string `json:"label"`
	}
	if !bind(c, &req) {
		return
	}
	list, err := h.svc.AddMinyan(c.Request.Context(), c.Param("id"), req.MinyanID, req.Label)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "minyanim": list})
}

func (h *Handler) relabelMinyan(c *gin.Context) {
	var req struct {
		Label string `json:"label"`
	}
	if !bind(c, &req) {
		return
	}
	m, err := h.svc.RelabelMinyan(c.Request.Context(), c.Param("id"), c.Param("minyanId"), req.Label)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "minyan": m})
}

func (h *Handler) removeMinyan(c *gin.Context) {
	list, err := h.svc.RemoveMinyan(c.Request.Context(), c.Param("id"), c.Param("minyanId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "minyanim": list})
}

// ---- participation ----

type rosterRequest struct {
	MinyanID string              `json:"minyanId"`
	User     *minyan.Participant `json:"user"`
}

func (r rosterRequest) valid() bool {
	return r.MinyanID != "" && r.User != nil && r.User.UID != ""
}

func (h *Handler) listParticipants(c *gin.Context) {
	parts, err := h.svc.ListParticipants(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, parts)
}

func (h *Handler) register(c *gin.Context) {
	var req rosterRequest
	if !bind(c, &req) {
		return
	}
	if !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing data"})
		return
	}
	if !h.actingFor(c, req.User.UID) {
		return
	}
	roster, err := h.svc.Register(c.Request.Context(), req.MinyanID, *req.User)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "participants": roster})
}

func (h *Handler) unregister(c *gin.Context) {
	var req rosterRequest
	if !bind(c, &req) {
		return
	}
	if !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing data"})
		return
	}
	if !h.actingFor(c, req.User.UID) {
		return
	}
	roster, err := h.svc.Unregister(c.Request.Context(), req.MinyanID, req.User.UID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "participants": roster})
}

// ---- profiles ----

func (h *Handler) setProfile(c *gin.Context) {
	var req struct {
		UID         string `json:"uid"`
		DisplayName string `json:"displayName"`
	}
	if !bind(c, &req) {
		return
	}
	if req.UID == "" || req.DisplayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}
	if !h.actingFor(c, req.UID) {
		return
	}
	if err := h.svc.SetDisplayName(c.Request.Context(), req.UID, req.DisplayName); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) getProfile(c *gin.Context) {
	name, err := h.svc.GetDisplayName(c.Request.Context(), c.Param("uid"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"displayName": name})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) listProfiles(c *gin.Context) {
	profiles, err := h.svc.ListProfiles(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
