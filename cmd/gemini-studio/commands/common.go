package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shouni/gemini-image-studio/pkg/adapters"
	"github.com/shouni/gemini-image-studio/pkg/config"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"github.com/shouni/gemini-image-studio/pkg/logger"
	"github.com/urfave/cli/v3"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config *config.Config
	Logger *slog.Logger
}

// NewAppContext は設定を読み込み、ロガーを初期化して AppContext を作成する
func NewAppContext(envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.Log.Level)
	logCfg.Format = cfg.Log.Format
	appLogger := logger.New(logCfg)

	return &AppContext{Config: cfg, Logger: appLogger}, nil
}

// NewOrchestrator は設定値から Gemini クライアントと参照画像ローダーを組み立てる
func (ac *AppContext) NewOrchestrator() (*generator.Orchestrator, error) {
	factory := adapters.Factory(adapters.ClientOptions{
		Model:    ac.Config.Gemini.Model,
		ProxyURL: ac.Config.Gemini.ProxyURL,
		Timeout:  ac.Config.Gemini.Timeout,
	})

	orch, err := generator.New(factory, adapters.NewGeminiImageCore(nil),
		generator.WithMaxAttempts(ac.Config.Generator.MaxAttempts),
		generator.WithRetryDelay(ac.Config.Generator.RetryDelay),
		generator.WithLogger(ac.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("ジェネレーターの初期化に失敗: %w", err)
	}
	return orch, nil
}

// stdout はコマンドの出力先を返す
func stdout(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}
