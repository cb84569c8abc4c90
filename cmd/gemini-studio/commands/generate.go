package commands

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/urfave/cli/v3"
)

// GenerateAction はプロンプトと参照画像から画像を生成するコマンドのアクション
func GenerateAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	cfg := appCtx.Config

	// フラグは設定ファイルより優先する
	if v := cmd.String("model"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := cmd.String("proxy"); v != "" {
		cfg.Gemini.ProxyURL = v
	}
	apiKey := strings.TrimSpace(cmd.String("api-key"))
	if apiKey == "" {
		apiKey = cfg.Gemini.APIKey
	}

	req, err := buildRequest(cmd, cfg.Generator.Resolution, cfg.Generator.AspectRatio, cfg.Generator.OutputDir)
	if err != nil {
		return err
	}
	req.APIKey = apiKey

	orch, err := appCtx.NewOrchestrator()
	if err != nil {
		return err
	}

	last := printRun(stdout(cmd), orch.Generate(ctx, req))
	if last.Phase == domain.PhaseFailure {
		return cli.Exit(last.Status, 1)
	}
	return nil
}

func buildRequest(cmd *cli.Command, defResolution, defAspectRatio, defOutputDir string) (domain.GenerationRequest, error) {
	res := domain.Resolution(firstNonEmpty(cmd.String("resolution"), defResolution))
	if !res.Valid() {
		return domain.GenerationRequest{}, fmt.Errorf("解像度が不正です: %q (1K/2K/4K)", res)
	}
	ratio := domain.AspectRatio(firstNonEmpty(cmd.String("aspect-ratio"), defAspectRatio))
	if !ratio.Valid() {
		return domain.GenerationRequest{}, fmt.Errorf("縦横比が不正です: %q", ratio)
	}

	return domain.GenerationRequest{
		Prompt:          cmd.String("prompt"),
		ReferenceImages: cmd.StringSlice("ref"),
		Resolution:      res,
		AspectRatio:     ratio,
		OutputDir:       firstNonEmpty(cmd.String("output-dir"), defOutputDir),
	}, nil
}

// printRun はスナップショットごとに新しいログ行を出力し、終端スナップショットを返す
func printRun(w io.Writer, seq iter.Seq[domain.Snapshot]) domain.Snapshot {
	var last domain.Snapshot
	printed := 0
	for snap := range seq {
		if printed > len(snap.Log) {
			printed = 0
		}
		for _, ev := range snap.Log[printed:] {
			fmt.Fprintln(w, ev.String())
		}
		printed = len(snap.Log)
		last = snap
	}

	fmt.Fprintf(w, "\n%s\n", last.Status)
	for _, p := range last.Images {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return last
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
