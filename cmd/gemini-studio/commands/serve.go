package commands

import (
	"context"
	"fmt"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ServeAction は HTTP サーバを起動するコマンドのアクション
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	cfg := appCtx.Config

	orch, err := appCtx.NewOrchestrator()
	if err != nil {
		return err
	}

	accessLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("アクセスロガーの初期化に失敗: %w", err)
	}
	defer accessLog.Sync()

	srv, err := server.New(orch, server.Options{
		APIKey:             cfg.Gemini.APIKey,
		OutputDir:          cfg.Generator.OutputDir,
		UploadDir:          cfg.Server.UploadDir,
		MaxUploadBytes:     cfg.Server.MaxUploadMiB << 20,
		DefaultResolution:  domain.Resolution(cfg.Generator.Resolution),
		DefaultAspectRatio: domain.AspectRatio(cfg.Generator.AspectRatio),
	}, accessLog)
	if err != nil {
		return fmt.Errorf("サーバの初期化に失敗: %w", err)
	}

	return srv.Run(ctx, firstNonEmpty(cmd.String("addr"), cfg.Server.Addr))
}
