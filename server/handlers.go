package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	"github.com/brianalban07/spartanfiles.github.io/middleware"
)

const (
	// multipartMemory is how much of an upload is buffered in memory before spilling to disk.
	multipartMemory = 32 << 20
	// multipartOverhead leaves room for boundaries and headers on top of MaxUploadBytes.
	multipartOverhead = 1 << 20
	maxLoginBody      = 64 << 10
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginPrompt struct {
	Message string   `json:"message"`
	Action  string   `json:"action"`
	Fields  []string `json:"fields"`
}

type loginResult struct {
	Message   string    `json:"message"`
	Redirect  string    `json:"redirect"`
	ExpiresAt time.Time `json:"expires_at"`
}

type uploadResult struct {
	Message string   `json:"message"`
	File    fileBody `json:"file"`
	// Deleted and DeleteError report a delete_file field sent along with the upload.
	Deleted     string `json:"deleted,omitempty"`
	DeleteError string `json:"delete_error,omitempty"`
}

type healthBody struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.IsShuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "shutting down"})
		return
	}
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok"})
}

func (s *Server) handleLoginPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, loginPrompt{
		Message: "Please log in.",
		Action:  s.cfg.Prefix + "/login",
		Fields:  []string{"username", "password"},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Malformed login request."})
		return
	}

	ctx := middleware.ClientContext(r, s.cfg.TrustProxy)
	sess, err := s.repo.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    sess.Token,
		Path:     s.cookiePath(),
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResult{
		Message:   "Login successful!",
		Redirect:  s.cookiePath(),
		ExpiresAt: sess.ExpiresAt.UTC(),
	})
}

// readCredentials accepts a JSON body or a classic form post.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var c credentials
		err := json.NewDecoder(r.Body).Decode(&c)
		return c, err
	}

	if err := r.ParseForm(); err != nil {
		return credentials{}, err
	}
	return credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionToken(r, s.cfg.CookieName); ok {
		if err := s.repo.Logout(r.Context(), token); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, messageBody{Message: "You have been logged out."})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tree, err := s.repo.Tree(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tree == nil {
		tree = []spartanfiles.Listing{}
	}
	writeJSON(w, http.StatusOK, struct {
		Departments []spartanfiles.Listing `json:"departments"`
	}{tree})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	dept := r.PathValue("department")
	cats, err := s.repo.ListCategories(r.Context(), dept)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, spartanfiles.Listing{Department: dept, Categories: cats})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	dept, category := r.PathValue("department"), r.PathValue("category")
	files, err := s.repo.ListFiles(r.Context(), dept, category)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]fileBody, 0, len(files))
	for _, f := range files {
		out = append(out, toFileBody(f))
	}
	writeJSON(w, http.StatusOK, struct {
		Department string     `json:"department"`
		Category   string     `json:"category"`
		Files      []fileBody `json:"files"`
	}{dept, category, out})
}

// handleCategoryPost keeps the form contract of the category page: a multipart "file" part
// uploads and a "delete_file" field deletes. A request may carry both; the upload runs first
// and a failed upload skips the delete.
func (s *Server) handleCategoryPost(w http.ResponseWriter, r *http.Request) {
	dept, category := r.PathValue("department"), r.PathValue("category")

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit(s.cfg.MaxUploadBytes))
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || errors.Is(err, multipart.ErrMessageTooLarge) {
			s.fail(w, r, spartanfiles.ErrTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Malformed form data."})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if fh := uploadedFile(r); fh != nil {
		res, ok := s.upload(w, r, dept, category, fh)
		if !ok {
			return
		}
		if r.Form.Has("delete_file") {
			name := r.Form.Get("delete_file")
			if err := s.repo.Delete(r.Context(), dept, category, name); err != nil {
				status, msg := fileFailure(err)
				if status >= http.StatusInternalServerError {
					s.logger.Error("delete after upload failed", "request_id", RequestID(r.Context()), "error", err)
				}
				res.DeleteError = msg
			} else {
				res.Deleted = name
			}
		}
		writeJSON(w, http.StatusCreated, res)
		return
	}
	if r.Form.Has("delete_file") {
		s.remove(w, r, dept, category, r.Form.Get("delete_file"))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid file type or no file uploaded."})
}

// uploadBodyLimit is the request body cap for a file cap of maxFile bytes, saturating at
// math.MaxInt64.
func uploadBodyLimit(maxFile int64) int64 {
	if maxFile > math.MaxInt64-multipartOverhead {
		return math.MaxInt64
	}
	return maxFile + multipartOverhead
}

func uploadedFile(r *http.Request) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 || files[0].Filename == "" {
		return nil
	}
	return files[0]
}

// upload stores fh and returns the response body. On failure the error response is already
// written and ok is false.
func (s *Server) upload(w http.ResponseWriter, r *http.Request, dept, category string, fh *multipart.FileHeader) (res uploadResult, ok bool) {
	f, err := fh.Open()
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: open upload: %v", spartanfiles.ErrStorage, err))
		return res, false
	}
	defer f.Close()

	info, err := s.repo.Upload(r.Context(), dept, category, fh.Filename, f)
	if err != nil {
		s.fail(w, r, err)
		return res, false
	}
	return uploadResult{
		Message: fmt.Sprintf("File '%s' uploaded successfully!", info.Name),
		File:    toFileBody(info),
	}, true
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request, dept, category, filename string) {
	if err := s.repo.Delete(r.Context(), dept, category, filename); err != nil {
		s.failFile(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("File '%s' deleted successfully!", filename)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.remove(w, r, r.PathValue("department"), r.PathValue("category"), r.PathValue("filename"))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	obj, err := s.repo.Download(r.Context(), r.PathValue("department"), r.PathValue("category"), r.PathValue("filename"))
	if err != nil {
		s.failFile(w, r, err)
		return
	}
	defer obj.Content.Close()

	w.Header().Set("Content-Disposition", attachment(obj.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, obj.Name, obj.ModTime, obj.Content)
}

// attachment builds a Content-Disposition value, RFC 2231 encoding names that need it.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment; filename=\"" + strings.Map(asciiOnly, name) + "\""
}

func asciiOnly(r rune) rune {
	if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
		return '_'
	}
	return r
}
