package commands

import (
	"context"
	"fmt"

	"github.com/shouni/gemini-image-studio/pkg/history"
	"github.com/urfave/cli/v3"
)

// HistoryAction は出力フォルダの画像を新しい順に表示するコマンドのアクション
func HistoryAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}

	dir := history.ResolveDir(firstNonEmpty(cmd.String("dir"), appCtx.Config.Generator.OutputDir))
	images := history.List(dir)

	w := stdout(cmd)
	if len(images) == 0 {
		fmt.Fprintf(w, "%s に画像はありません\n", dir)
		return nil
	}

	limit := int(cmd.Int("limit"))
	if limit > 0 && limit < len(images) {
		images = images[:limit]
	}
	for _, p := range images {
		fmt.Fprintln(w, p)
	}
	return nil
}
