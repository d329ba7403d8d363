package devserver

import (
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/sirupsen/logrus"
)

// Handler contains the HTTP handlers for the NeoCities API endpoints.
type Handler struct {
	config  Config
	store   *Store
	logger  *logrus.Logger
	created time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config, store *Store, logger *logrus.Logger) *Handler {
	return &Handler{
		config:  cfg,
		store:   store,
		logger:  logger,
		created: time.Now().UTC(),
	}
}

func success(message string) neocities.Response {
	return neocities.Response{Result: "success", Message: message}
}

func failure(errorType, message string) neocities.Response {
	return neocities.Response{Result: "error", ErrorType: errorType, Message: message}
}

// RequireKey rejects requests without the site's bearer token.
func (h *Handler) RequireKey(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+h.config.APIKey {
		c.AbortWithStatusJSON(http.StatusForbidden, failure("invalid_auth", "invalid API key"))
		return
	}
	c.Next()
}

// Key handles GET /api/key, authenticated with Basic Auth.
func (h *Handler) Key(c *gin.Context) {
	if !h.validateUser(c) {
		c.JSON(http.StatusForbidden, failure("invalid_auth", "invalid credentials - please check your username and password"))
		return
	}
	c.JSON(http.StatusOK, neocities.KeyResponse{
		Response: success(""),
		APIKey:   h.config.APIKey,
	})
}

// Info handles GET /api/info.
func (h *Handler) Info(c *gin.Context) {
	sitename := c.Query("sitename")
	if sitename != "" && sitename != h.config.Site {
		c.JSON(http.StatusBadRequest, failure("missing_info", "could not find site"))
		return
	}

	lastUpdated := neocities.Timestamp{}
	if files, err := h.store.List(""); err == nil {
		for _, f := range files {
			if f.UpdatedAt.After(lastUpdated.Time) {
				lastUpdated = f.UpdatedAt
			}
		}
	}

	c.JSON(http.StatusOK, neocities.InfoResponse{
		Response: success(""),
		Info: neocities.SiteInfo{
			Sitename:    h.config.Site,
			CreatedAt:   neocities.Timestamp{Time: h.created},
			LastUpdated: lastUpdated,
			Tags:        []string{},
		},
	})
}

// List handles GET /api/list.
func (h *Handler) List(c *gin.Context) {
	files, err := h.store.List(c.Query("path"))
	if err != nil {
		h.logger.Errorf("list error: %v", err)
		c.JSON(http.StatusBadRequest, failure("invalid_path", err.Error()))
		return
	}
	c.JSON(http.StatusOK, neocities.ListResponse{
		Response: success(""),
		Files:    files,
	})
}

// Upload handles POST /api/upload. Every multipart file field name is the
// target path on the site.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File) == 0 {
		c.JSON(http.StatusBadRequest, failure("missing_files", "you must choose files to upload"))
		return
	}

	// Validate every path before writing anything.
	targets := make(map[string]string, len(form.File))
	for field := range form.File {
		rel, err := neocities.RelPath("", field)
		if err != nil {
			c.JSON(http.StatusBadRequest, failure("invalid_file_type", err.Error()))
			return
		}
		targets[field] = rel
	}

	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusInternalServerError, failure("server_error", err.Error()))
				return
			}
			err = h.store.Write(targets[field], f)
			f.Close()
			if err != nil {
				h.logger.Errorf("upload error: %v", err)
				c.JSON(http.StatusInternalServerError, failure("server_error", err.Error()))
				return
			}
		}
	}

	h.logger.Infof("%s: %d file(s) uploaded", h.config.Site, len(targets))
	c.JSON(http.StatusOK, success("your file(s) have been successfully uploaded"))
}

// Delete handles POST /api/delete.
func (h *Handler) Delete(c *gin.Context) {
	names := c.PostFormArray("filenames[]")
	if len(names) == 0 {
		c.JSON(http.StatusBadRequest, failure("missing_filenames", "you must provide files to delete"))
		return
	}

	rels := make([]string, 0, len(names))
	for _, name := range names {
		rel, err := neocities.RelPath("", name)
		if err != nil {
			c.JSON(http.StatusBadRequest, failure("bad_filename", err.Error()))
			return
		}
		rels = append(rels, rel)
	}

	if err := h.store.Delete(rels); err != nil {
		if errors.Is(err, errNotFound) {
			c.JSON(http.StatusBadRequest, failure("missing_files", err.Error()+", no files were deleted"))
			return
		}
		c.JSON(http.StatusInternalServerError, failure("server_error", err.Error()))
		return
	}

	h.logger.Infof("%s: %d file(s) deleted", h.config.Site, len(rels))
	c.JSON(http.StatusOK, success("file(s) have been deleted"))
}

// ServeFile handles GET /site/*filepath, the published copy of a file.
func (h *Handler) ServeFile(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	if rel == "" {
		rel = "index.html"
	}

	data, err := h.store.Read(rel)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(rel))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// validateUser validates the Basic Auth credentials.
func (h *Handler) validateUser(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return false
	}

	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}

	username := parts[0]
	password := parts[1]

	return username == h.config.Username && password == h.config.Password
}
