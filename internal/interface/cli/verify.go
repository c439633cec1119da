package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/offlineqa/internal/bootstrap"
	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/infra/config"
)

const verifyLongDesc string = `Check that the offline assistant can start.

Loads the dataset, embeds a sample sentence, builds the similarity index and
runs one query end to end. The first dataset question is used as the sample
unless --query is given.`

type verifyCommander struct {
	opts  *rootOptions
	query string
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	cmder := &verifyCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify dataset, embedder and index",
		Long:  verifyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Sample query for the end-to-end check")

	return cmd
}

func (c *verifyCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := c.opts.load()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n\n", headerStyle.Render("Verifying offline Q&A setup"))

	var dataset qa.Dataset
	var embedder qa.Embedder
	var bot qa.Chatbot
	failed := false

	loader, err := bootstrap.ProvideDatasetLoader(cfg, log)
	if err != nil {
		return err
	}
	if err := step(out, "dataset "+cfg.Dataset.Path, func() (string, error) {
		dataset, err = loader.Load(ctx, cfg.Dataset.Path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d records", dataset.Len()), nil
	}); err != nil {
		failed = true
	}

	client, closeValkey := bootstrap.ProvideValkeyClient(cfg, log)
	defer closeValkey()

	if err := step(out, "embedder "+bootstrap.EmbeddingModelID(cfg), func() (string, error) {
		embedder, err = bootstrap.ProvideEmbedder(cfg, client, log)
		if err != nil {
			return "", err
		}
		vectors, err := embedder.Embed(ctx, []string{"नमस्ते farmer"})
		if err != nil {
			return "", err
		}
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return "", errors.New("embedder returned no vector")
		}
		return fmt.Sprintf("%d dimensions", len(vectors[0])), nil
	}); err != nil {
		failed = true
	}

	if failed {
		return errors.New("setup verification failed")
	}

	index, closeIndex, err := bootstrap.ProvideIndex(ctx, cfg, log)
	if err != nil {
		_ = step(out, "index "+cfg.Index.Backend, func() (string, error) { return "", err })
		return errors.New("setup verification failed")
	}
	defer closeIndex()

	if err := step(out, "index "+cfg.Index.Backend, func() (string, error) {
		bot, err = bootstrap.ProvideChatbot(ctx, bootstrap.ProvideQAConfig(cfg), loader, embedder, index, log)
		if err != nil {
			return "", err
		}
		stats := bot.Stats()
		return fmt.Sprintf("%d vectors", stats.Records), nil
	}); err != nil {
		return errors.New("setup verification failed")
	}

	sample := c.sampleQuery(dataset)
	if err := step(out, "end-to-end query", func() (string, error) {
		return runSample(ctx, bot, sample, cfg)
	}); err != nil {
		return errors.New("setup verification failed")
	}

	fmt.Fprintf(out, "\n%s\n", successMark+" ready")
	return nil
}

func (c *verifyCommander) sampleQuery(dataset qa.Dataset) string {
	if q := strings.TrimSpace(c.query); q != "" {
		return q
	}
	if dataset.Len() > 0 {
		return dataset.Records[0].Question
	}
	return "hello"
}

func runSample(ctx context.Context, bot qa.Chatbot, query string, cfg *config.Config) (string, error) {
	if bot.Stats().Records == 0 {
		resp, err := bot.Chat(ctx, query, true)
		if err != nil {
			return "", err
		}
		return "empty dataset, fallback answer: " + resp.Answer, nil
	}
	results, err := bot.Search(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errors.New("search returned no results")
	}
	best := results[0]
	detail := fmt.Sprintf("%q matched %q at %s", query, best.Question, formatPercent(best.Confidence))
	if best.Confidence < cfg.Chat.ConfidenceThreshold {
		detail += " (below threshold)"
	}
	return detail, nil
}
