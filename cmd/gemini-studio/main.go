package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shouni/gemini-image-studio/cmd/gemini-studio/commands"
	"github.com/urfave/cli/v3"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "gemini-studio",
		Usage: "Gemini によるプロンプト＋参照画像からの画像生成ツール",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "画像を生成して出力フォルダに保存",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Gemini APIキー",
						Sources: cli.EnvVars("GEMINI_API_KEY"),
					},
					&cli.StringFlag{
						Name:    "prompt",
						Aliases: []string{"p"},
						Usage:   "生成プロンプト",
					},
					&cli.StringSliceFlag{
						Name:  "ref",
						Usage: "参照画像のパス（複数指定可、先頭の10枚まで使用）",
					},
					&cli.StringFlag{
						Name:  "resolution",
						Usage: "解像度 (1K/2K/4K、省略時は DEFAULT_RESOLUTION)",
					},
					&cli.StringFlag{
						Name:  "aspect-ratio",
						Usage: "縦横比 (例: 16:9、省略時は DEFAULT_ASPECT_RATIO)",
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "出力フォルダ（省略時は OUTPUT_DIR または ./outputs）",
					},
					&cli.StringFlag{
						Name:  "proxy",
						Usage: "プロキシURL (http/https/socks5)",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "モデル名",
					},
				},
				Action: commands.GenerateAction,
			},
			{
				Name:  "history",
				Usage: "出力フォルダの画像を新しい順に表示",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "dir",
						Usage: "出力フォルダ（省略時は OUTPUT_DIR または ./outputs）",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "表示件数（0 は無制限）",
					},
				},
				Action: commands.HistoryAction,
			},
			{
				Name:  "serve",
				Usage: "HTTPサーバを起動",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "待ち受けアドレス（省略時は SERVER_ADDR または 127.0.0.1:7860）",
					},
				},
				Action: commands.ServeAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
