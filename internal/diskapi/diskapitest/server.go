// Package diskapitest runs an in-memory disk API over HTTP for tests.
package diskapitest

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

const (
	defaultListLimit = 20
	rootPath         = "/"
)

type node struct {
	dir      bool
	modified time.Time
	content  []byte
}

type operation struct {
	target       string
	pendingPolls int
	polls        int
	fail         bool
	done         bool
}

// Server is a fake disk API. The zero configuration behaves like the real
// service for the calls diskmirror makes; the exported fields inject faults.
type Server struct {
	URL string

	// Now stamps uploads and created directories. Defaults to time.Now.
	Now func() time.Time

	// AsyncDeletes answers every delete with 202 and an operation that stays
	// in progress for PendingPolls status checks before succeeding.
	AsyncDeletes bool
	PendingPolls int
	// FailOperations makes asynchronous deletes end with status "failed".
	FailOperations bool

	// FailStatus maps "METHOD path" to a forced status code.
	FailStatus map[string]int
	// OmitUploadHref answers upload link requests without href.
	OmitUploadHref bool

	mu       sync.Mutex
	nodes    map[string]*node
	ops      map[string]*operation
	opSeq    int
	calls    map[string]int
	pathLogs []string
	srv      *httptest.Server
}

func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		Now:        time.Now,
		FailStatus: map[string]int{},
		nodes:      map[string]*node{rootPath: {dir: true}},
		ops:        map[string]*operation{},
		calls:      map[string]int{},
	}

	r := gin.New()
	r.Use(slogGin.NewWithConfig(slog.Default().WithGroup("diskapitest"), slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelDebug,
		ServerErrorLevel: slog.LevelDebug,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.GET("/v1/disk/resources", s.handleList)
	r.PUT("/v1/disk/resources", s.handleCreateDir)
	r.DELETE("/v1/disk/resources", s.handleDelete)
	r.GET("/v1/disk/resources/upload", s.handleUploadLink)
	r.PUT("/upload/:token", s.handlePut)
	r.GET("/v1/disk/operations/:id", s.handleOperation)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	return s
}

func (s *Server) Close() {
	s.srv.Close()
}

// ===================================================================================================
// seeding and inspection

// PutFile stores a file, creating missing parents.
func (s *Server) PutFile(p string, content []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = normalize(p)
	s.mkdirAllLocked(path.Dir(p), modified)
	s.nodes[p] = &node{modified: modified, content: content}
}

// MkdirAll creates a directory chain.
func (s *Server) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(normalize(p), s.Now())
}

func (s *Server) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[normalize(p)]
	return ok
}

func (s *Server) IsDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[normalize(p)]
	return ok && n.dir
}

func (s *Server) Content(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[normalize(p)]
	if !ok || n.dir {
		return nil, false
	}
	return n.content, true
}

func (s *Server) Modified(p string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[normalize(p)]
	if !ok {
		return time.Time{}, false
	}
	return n.modified, true
}

// Calls returns how many requests hit the named endpoint:
// "list", "mkdir", "delete", "upload-link", "put", "operation".
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Requests returns "endpoint path" entries in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pathLogs...)
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
	s.pathLogs = nil
}

// ===================================================================================================
// handlers

func (s *Server) handleList(c *gin.Context) {
	p := normalize(c.Query("path"))
	if s.intercept(c, "list", http.MethodGet, p) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[p]
	if !ok {
		apiError(c, http.StatusNotFound, "DiskNotFoundError", "Resource not found.")
		return
	}

	res := gin.H{
		"name":     path.Base(p),
		"path":     diskPath(p),
		"type":     typeOf(n),
		"modified": n.modified.Format(time.RFC3339),
	}
	if n.dir {
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
		if err != nil || limit <= 0 {
			limit = defaultListLimit
		}

		children := s.childrenLocked(p)
		total := len(children)
		if offset > total {
			offset = total
		}
		end := min(offset+limit, total)

		items := make([]gin.H, 0, end-offset)
		for _, child := range children[offset:end] {
			cn := s.nodes[child]
			items = append(items, gin.H{
				"name":     path.Base(child),
				"path":     diskPath(child),
				"type":     typeOf(cn),
				"modified": cn.modified.Format(time.RFC3339),
				"size":     len(cn.content),
			})
		}
		res["_embedded"] = gin.H{
			"path":   diskPath(p),
			"items":  items,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCreateDir(c *gin.Context) {
	p := normalize(c.Query("path"))
	if s.intercept(c, "mkdir", http.MethodPut, p) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[p]; ok {
		apiError(c, http.StatusConflict, "DiskPathPointsToExistentDirectoryError", "Specified path points to existent directory.")
		return
	}
	if parent, ok := s.nodes[path.Dir(p)]; !ok || !parent.dir {
		apiError(c, http.StatusConflict, "DiskPathDoesntExistsError", "Specified path doesn't exist.")
		return
	}

	s.nodes[p] = &node{dir: true, modified: s.Now()}
	c.JSON(http.StatusCreated, gin.H{"href": s.URL + "/v1/disk/resources?path=" + diskPath(p), "method": "GET"})
}

func (s *Server) handleDelete(c *gin.Context) {
	p := normalize(c.Query("path"))
	if s.intercept(c, "delete", http.MethodDelete, p) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[p]; !ok || p == rootPath {
		apiError(c, http.StatusNotFound, "DiskNotFoundError", "Resource not found.")
		return
	}

	if !s.AsyncDeletes {
		s.removeLocked(p)
		c.Status(http.StatusNoContent)
		return
	}

	s.opSeq++
	id := fmt.Sprintf("op-%d", s.opSeq)
	s.ops[id] = &operation{target: p, pendingPolls: s.PendingPolls, fail: s.FailOperations}
	c.JSON(http.StatusAccepted, gin.H{"href": s.URL + "/v1/disk/operations/" + id, "method": "GET"})
}

func (s *Server) handleOperation(c *gin.Context) {
	id := c.Param("id")
	if s.intercept(c, "operation", http.MethodGet, id) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[id]
	if !ok {
		apiError(c, http.StatusNotFound, "NotFoundError", "Operation not found.")
		return
	}

	op.polls++
	if op.polls <= op.pendingPolls {
		c.JSON(http.StatusOK, gin.H{"status": "in-progress"})
		return
	}
	if op.fail {
		c.JSON(http.StatusOK, gin.H{"status": "failed"})
		return
	}
	if !op.done {
		s.removeLocked(op.target)
		op.done = true
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleUploadLink(c *gin.Context) {
	p := normalize(c.Query("path"))
	if s.intercept(c, "upload-link", http.MethodGet, p) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if parent, ok := s.nodes[path.Dir(p)]; !ok || !parent.dir {
		apiError(c, http.StatusConflict, "DiskPathDoesntExistsError", "Specified path doesn't exist.")
		return
	}
	if existing, ok := s.nodes[p]; ok && (existing.dir || c.Query("overwrite") != "true") {
		apiError(c, http.StatusConflict, "DiskResourceAlreadyExistsError", "Resource already exists.")
		return
	}

	if s.OmitUploadHref {
		c.JSON(http.StatusOK, gin.H{"method": "PUT", "templated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"href":      s.URL + "/upload/" + encodeToken(p),
		"method":    "PUT",
		"templated": false,
	})
}

func (s *Server) handlePut(c *gin.Context) {
	p, err := decodeToken(c.Param("token"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if s.intercept(c, "put", http.MethodPut, p) {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[p] = &node{modified: s.Now(), content: body}
	c.Status(http.StatusCreated)
}

// ===================================================================================================
// helpers

func (s *Server) intercept(c *gin.Context, endpoint, method, p string) bool {
	s.mu.Lock()
	s.calls[endpoint]++
	s.pathLogs = append(s.pathLogs, endpoint+" "+p)
	status, ok := s.FailStatus[method+" "+p]
	s.mu.Unlock()

	if !ok {
		return false
	}
	apiError(c, status, "InjectedError", "injected failure")
	return true
}

func (s *Server) mkdirAllLocked(p string, modified time.Time) {
	for _, dir := range chain(p) {
		if _, ok := s.nodes[dir]; !ok {
			s.nodes[dir] = &node{dir: true, modified: modified}
		}
	}
}

func (s *Server) childrenLocked(p string) []string {
	var children []string
	for candidate := range s.nodes {
		if candidate != rootPath && path.Dir(candidate) == p {
			children = append(children, candidate)
		}
	}
	sort.Strings(children)
	return children
}

func (s *Server) removeLocked(p string) {
	prefix := strings.TrimSuffix(p, "/") + "/"
	for candidate := range s.nodes {
		if candidate == p || strings.HasPrefix(candidate, prefix) {
			delete(s.nodes, candidate)
		}
	}
}

func apiError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message, "description": message})
}

func typeOf(n *node) string {
	if n.dir {
		return "dir"
	}
	return "file"
}

// normalize maps "disk:/a/b", "/a/b/" and "a/b" to "/a/b".
func normalize(p string) string {
	p = strings.TrimPrefix(p, "disk:")
	return path.Clean("/" + p)
}

func diskPath(p string) string {
	return "disk:" + p
}

// upload hrefs carry the target path so the PUT handler needs no lookup table
func encodeToken(p string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(p))
}

func decodeToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return normalize(string(raw)), nil
}

// chain returns every directory from the root down to p, excluding the root.
func chain(p string) []string {
	if p == rootPath {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	dirs := make([]string, 0, len(parts))
	for i := range parts {
		dirs = append(dirs, "/"+strings.Join(parts[:i+1], "/"))
	}
	return dirs
}
