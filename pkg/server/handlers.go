package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/history"
	"go.uber.org/zap"
)

// snapshotPayload は SSE で送る 1 件分の JSON です。
type snapshotPayload struct {
	domain.Snapshot
	LogText string `json:"log_text"`
	Error   string `json:"error,omitempty"`
}

func newSnapshotPayload(s domain.Snapshot) snapshotPayload {
	p := snapshotPayload{Snapshot: s, LogText: s.LogText()}
	if s.Err != nil {
		p.Error = s.Err.Error()
	}
	return p
}

func (s *Server) handleOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"resolutions":          domain.Resolutions(),
		"aspect_ratios":        domain.AspectRatios(),
		"default_resolution":   s.opts.DefaultResolution,
		"default_aspect_ratio": s.opts.DefaultAspectRatio,
		"output_dir":           s.opts.OutputDir,
		"max_reference_images": domain.MaxReferenceImages,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	dir, err := s.confine(c.Query("dir"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": history.List(dir)})
}

// handleGenerate はフォームを GenerationRequest に正規化し、進捗を Server-Sent Events で返します。
func (s *Server) handleGenerate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	req, err := s.bindRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uploadDir, err := os.MkdirTemp(s.opts.UploadDir, "refs-*")
	if err != nil {
		s.logger.Error("Failed to create upload dir", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploads"})
		return
	}
	defer os.RemoveAll(uploadDir)

	refs, err := s.saveUploads(c, uploadDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ReferenceImages = refs

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	seq := 0
	for snap := range s.gen.Generate(c.Request.Context(), req) {
		seq++
		c.Render(-1, sse.Event{
			Id:    fmt.Sprintf("%s-%d", snap.RunID, seq),
			Event: "snapshot",
			Data:  newSnapshotPayload(snap),
		})
		c.Writer.Flush()

		if snap.Terminal() {
			s.logger.Info("Generation finished",
				zap.String("run_id", snap.RunID),
				zap.String("phase", string(snap.Phase)),
				zap.Int("images", len(snap.Images)),
			)
		}
	}
}

func (s *Server) bindRequest(c *gin.Context) (domain.GenerationRequest, error) {
	req := domain.GenerationRequest{
		APIKey:      strings.TrimSpace(c.PostForm("api_key")),
		Prompt:      c.PostForm("prompt"),
		Resolution:  domain.Resolution(c.DefaultPostForm("resolution", string(s.opts.DefaultResolution))),
		AspectRatio: domain.AspectRatio(c.DefaultPostForm("aspect_ratio", string(s.opts.DefaultAspectRatio))),
	}
	outputDir, err := s.confine(c.PostForm("output_dir"))
	if err != nil {
		return req, err
	}
	req.OutputDir = outputDir
	if req.APIKey == "" {
		req.APIKey = s.opts.APIKey
	}
	if !req.Resolution.Valid() {
		return req, fmt.Errorf("invalid resolution: %q", req.Resolution)
	}
	if !req.AspectRatio.Valid() {
		return req, fmt.Errorf("invalid aspect_ratio: %q", req.AspectRatio)
	}
	return req, nil
}

// confine は dir を出力フォルダ基準で解決し、出力フォルダの外を指す場合はエラーを返します。
// 空文字列は出力フォルダそのものです。
func (s *Server) confine(dir string) (string, error) {
	if dir == "" {
		return s.opts.OutputDir, nil
	}
	resolved := filepath.Clean(dir)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.opts.OutputDir, resolved)
	}
	rel, err := filepath.Rel(s.opts.OutputDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory is outside the output folder: %q", dir)
	}
	return resolved, nil
}

// saveUploads はアップロードされた参照画像を送信順のファイル名で保存し、パスの列を返します。
func (s *Server) saveUploads(c *gin.Context, dir string) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	var files []*multipart.FileHeader
	if form.File != nil {
		files = form.File["images"]
	}

	paths := make([]string, 0, len(files))
	for i, fh := range files {
		dst := filepath.Join(dir, fmt.Sprintf("%02d%s", i, strings.ToLower(filepath.Ext(fh.Filename))))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			return nil, fmt.Errorf("failed to save upload %q: %w", fh.Filename, err)
		}
		paths = append(paths, dst)
	}
	return paths, nil
}
