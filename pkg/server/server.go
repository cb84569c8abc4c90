package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/history"
	"go.uber.org/zap"
)

// Generator は生成処理をスナップショット列として提供します。
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) iter.Seq[domain.Snapshot]
}

// Options は HTTP 層の既定値です。
// output_dir と履歴の dir は OutputDir 配下に限定されます。
type Options struct {
	APIKey             string // フォームで未指定の場合に使う API キー
	OutputDir          string
	UploadDir          string
	MaxUploadBytes     int64
	DefaultResolution  domain.Resolution
	DefaultAspectRatio domain.AspectRatio
}

// Server は生成 API と履歴 API を公開する HTTP サーバーです。
type Server struct {
	gen    Generator
	opts   Options
	logger *zap.Logger
	engine *gin.Engine
}

// New はルーティングを構成した Server を返します。
func New(gen Generator, opts Options, logger *zap.Logger) (*Server, error) {
	if gen == nil {
		return nil, fmt.Errorf("gen (Generator) is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if !opts.DefaultResolution.Valid() {
		opts.DefaultResolution = domain.DefaultResolution
	}
	if !opts.DefaultAspectRatio.Valid() {
		opts.DefaultAspectRatio = domain.DefaultAspectRatio
	}
	outputDir, err := filepath.Abs(history.ResolveDir(opts.OutputDir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	opts.OutputDir = outputDir

	s := &Server{gen: gen, opts: opts, logger: logger}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(accessLogger(s.logger))
	router.Use(recoverer(s.logger))
	router.MaxMultipartMemory = 8 << 20

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/options", s.handleOptions)
		api.GET("/history", s.handleHistory)
		api.POST("/generate", s.handleGenerate)
	}

	router.Static("/outputs", s.opts.OutputDir)
	return router
}

// Handler は http.Handler を返します。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run は ctx がキャンセルされるまで addr で待ち受けます。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", addr), zap.String("output_dir", s.opts.OutputDir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
