package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/offlineqa/internal/bootstrap"
	"github.com/yanqian/offlineqa/internal/domain/qa"
)

const askLongDesc string = `Answer one question from the dataset and exit.

Example:
  qactl ask "When should I sow wheat?"
  qactl ask "गेहूं की बुवाई कब करें?" --show-confidence
  qactl ask "mandi price" --top 3`

type askCommander struct {
	opts           *rootOptions
	threshold      float64
	showConfidence bool
	topK           int
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	cmder := &askCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, log, err := cmder.opts.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				cmder.threshold = cfg.Chat.ConfidenceThreshold
			}
			rt, cleanup, err := bootstrap.NewRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()
			return cmder.run(ctx, cmd.OutOrStdout(), rt.Chatbot, strings.Join(args, " "))
		},
	}

	cmd.Flags().Float64VarP(&cmder.threshold, "threshold", "t", qa.DefaultConfidenceThreshold, "Confidence below which the answer carries a disclaimer")
	cmd.Flags().BoolVar(&cmder.showConfidence, "show-confidence", false, "Print confidence and the matched question")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "List the k nearest questions instead of answering")

	return cmd
}

func (c *askCommander) run(ctx context.Context, out io.Writer, bot qa.Chatbot, query string) error {
	switch {
	case c.topK > 0:
		results, err := bot.Search(ctx, query, c.topK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "  %s  %s  %s\n     %s\n",
				rankStyle.Render(fmt.Sprintf("#%d", i+1)),
				scoreStyle.Render(fmt.Sprintf("confidence %s  distance %.4f", formatPercent(r.Confidence), r.Distance)),
				matchedStyle.Render(r.Question),
				answerStyle.Render(r.Answer),
			)
		}
		return nil
	case c.showConfidence:
		resp, err := bot.Chat(ctx, query, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, answerStyle.Render(resp.Answer))
		if confidence, ok := resp.Confidence(); ok {
			line := "confidence " + formatPercent(confidence)
			if matched, ok := resp.MatchedQuestion(); ok {
				line += "  matched " + fmt.Sprintf("%q", matched)
			}
			fmt.Fprintln(out, dimStyle.Render(line))
		}
		return nil
	default:
		answer, err := bot.GetAnswer(ctx, query, c.threshold)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, answerStyle.Render(answer))
		return nil
	}
}
