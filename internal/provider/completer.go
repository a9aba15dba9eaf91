package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragkit/internal/budget"
	"github.com/54b3r/ragkit/internal/resilience"
)

// Completer adapts an eino chat model to rag.Completer. Each call sends a
// single user message and returns the reply content. Calls run through a
// resilience.Executor.
type Completer struct {
	model     model.BaseChatModel
	exec      *resilience.Executor
	operation string
	log       *slog.Logger
}

// NewCompleter wraps m. operation names the circuit breaker, e.g.
// "chat.openai". A nil exec gets one built from resilience.DefaultConfig.
func NewCompleter(m model.BaseChatModel, exec *resilience.Executor, operation string, log *slog.Logger) *Completer {
	if log == nil {
		log = slog.Default()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), log)
	}
	return &Completer{model: m, exec: exec, operation: operation, log: log}
}

// Complete sends prompt as one user message and returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}
	start := time.Now()

	var reply *schema.Message
	err := c.exec.Execute(ctx, c.operation, func(ctx context.Context) error {
		out, err := c.model.Generate(ctx, msgs)
		if err != nil {
			return err
		}
		reply = out
		return nil
	}, ClassifyChatError)
	if err != nil {
		return "", fmt.Errorf("provider: chat completion: %w", err)
	}
	if reply == nil {
		return "", fmt.Errorf("provider: chat completion returned no message")
	}

	c.log.Debug("chat completion",
		slog.String("operation", c.operation),
		slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)),
		slog.Int("reply_tokens_est", budget.Estimate(reply.Content)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return reply.Content, nil
}

// statusCodePattern matches the status code embedded in OpenAI-style
// client error messages ("error, status code: 429, ...").
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// ClassifyChatError classifies chat model errors. eino backends return
// provider-specific error types, so beyond the typed cases of
// resilience.ClassifyHTTP the status code is read from the message.
func ClassifyChatError(err error) resilience.ErrorClassification {
	class := resilience.ClassifyHTTP(err)
	if class.Retryable || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return class
	}
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		return class
	}

	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		if resilience.IsRetryableHTTPStatus(code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return class
}
