// Command console runs an interactive terminal chat. Typing "exit" quits;
// buffered telemetry is drained before the process ends.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/app"
	"github.com/upb/rag-chat/config"
	"github.com/upb/rag-chat/internal/observability"
	"github.com/upb/rag-chat/services/rag"
)

const (
	exitToken = "exit"
	// snippetChars bounds the document preview printed under each answer.
	snippetChars = 500
)

// querySession is the slice of the pipeline the REPL needs.
type querySession interface {
	HandleQuery(ctx context.Context, userInput, systemPrompt, assistantPrompt string) *rag.Answer
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	systemPrompt := flag.String("system", "", "optional system prompt")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg.SetupEnvironment()

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}

	repl(ctx, deps.NewSession(), *systemPrompt, os.Stdin, os.Stdout)

	if err := deps.Close(ctx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}
}

// snippet cuts on rune boundaries so multibyte previews stay valid UTF-8.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}

// repl reads questions line by line until EOF or the exit token.
func repl(ctx context.Context, session querySession, systemPrompt string, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, `Ask a question, or type "exit" to quit.`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == exitToken {
			return
		}
		if line == "" {
			continue
		}

		answer := session.HandleQuery(ctx, line, systemPrompt, "")
		fmt.Fprintf(out, "Assistant: %s\n", answer.Result.ResponseText)
		for _, doc := range answer.Ranked {
			fmt.Fprintf(out, "  [%s] distance %.4f: %s\n",
				doc.Source(), doc.Distance, snippet(doc.Content, snippetChars))
		}
	}
}
