package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ngm-go/internal/config"
	"ngm-go/internal/service/ngram"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type NgramServer struct {
	server       *mcp.Server
	ngramService *ngram.NGramService
	config       *config.Config
	logger       *zap.Logger
	handler      *mcp.StreamableHTTPHandler
}

type UpdateParams struct {
	ModelID string   `json:"model_id" jsonschema:"the id of the model to train"`
	Texts   []string `json:"texts" jsonschema:"training texts, one document per entry"`
}

type LpmfParams struct {
	ModelID  string   `json:"model_id" jsonschema:"the id of the model to score with"`
	Texts    []string `json:"texts" jsonschema:"texts to score"`
	NThreads int      `json:"n_threads,omitempty" jsonschema:"number of scoring workers, 0 for the server default"`
}

type DetailsParams struct {
	ModelID string `json:"model_id" jsonschema:"the id of the model to score with"`
	Text    string `json:"text" jsonschema:"the text to break down token by token"`
}

type StatsParams struct {
	ModelID string `json:"model_id" jsonschema:"the id of the model to describe"`
}

func NewNgramServer(ngramService *ngram.NGramService, cfg *config.Config, logger *zap.Logger) *NgramServer {
	server := &NgramServer{
		ngramService: ngramService,
		config:       cfg,
		logger:       logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "NgramModels",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ngramUpdate",
		Description: "Train an n-gram model on a batch of texts. Counts accumulate across calls. Returns the model statistics after the update",
	}, server.handleUpdate)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ngramLpmf",
		Description: "Score texts with an n-gram model. Returns one log-probability per text, in input order",
	}, server.handleLpmf)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ngramStats",
		Description: "Describe an n-gram model: hyperparameters, vocabulary size, context and n-gram counts",
	}, server.handleStats)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ngramDetails",
		Description: "Break a text down token by token: context, probability and log-probability of each token, plus the text's perplexity",
	}, server.handleDetails)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

func (s *NgramServer) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, args UpdateParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling ngramUpdate request", zap.String("model_id", args.ModelID), zap.Int("texts", len(args.Texts)))

	stats, err := s.ngramService.Update(ctx, args.ModelID, args.Texts)
	if err != nil {
		s.logger.Error("Failed to update model", zap.String("model_id", args.ModelID), zap.Error(err))
		return errorResult("Failed to update model: %v", err), nil, nil
	}

	return textResult(formatStats(args.ModelID, stats)), nil, nil
}

func (s *NgramServer) handleLpmf(ctx context.Context, req *mcp.CallToolRequest, args LpmfParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling ngramLpmf request",
		zap.String("model_id", args.ModelID),
		zap.Int("texts", len(args.Texts)),
		zap.Int("n_threads", args.NThreads))

	scores, err := s.ngramService.Lpmf(ctx, args.ModelID, args.Texts, args.NThreads)
	if err != nil {
		s.logger.Error("Failed to score texts", zap.String("model_id", args.ModelID), zap.Error(err))
		return errorResult("Failed to score texts: %v", err), nil, nil
	}

	data, err := json.Marshal(scores)
	if err != nil {
		return errorResult("Failed to encode scores: %v", err), nil, nil
	}
	return textResult(string(data)), nil, nil
}

func (s *NgramServer) handleStats(ctx context.Context, req *mcp.CallToolRequest, args StatsParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling ngramStats request", zap.String("model_id", args.ModelID))

	info, err := s.ngramService.GetModelInfo(args.ModelID)
	if err != nil {
		s.logger.Error("Model not found", zap.String("model_id", args.ModelID), zap.Error(err))
		return errorResult("Model not found: %s", args.ModelID), nil, nil
	}

	return textResult(fmt.Sprintf("Model '%s'\n%s", info.Name, formatStats(info.ID, &info.Stats))), nil, nil
}

func (s *NgramServer) handleDetails(ctx context.Context, req *mcp.CallToolRequest, args DetailsParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling ngramDetails request", zap.String("model_id", args.ModelID))

	details, err := s.ngramService.Details(ctx, args.ModelID, args.Text)
	if err != nil {
		s.logger.Error("Failed to break down text", zap.String("model_id", args.ModelID), zap.Error(err))
		return errorResult("Failed to break down text: %v", err), nil, nil
	}

	var b strings.Builder
	for _, d := range details.Tokens {
		marker := ""
		if d.OOV {
			marker = " (oov)"
		}
		if !d.SeenContext {
			marker += " (unseen context)"
		}
		fmt.Fprintf(&b, "%s | %s: p=%.6g log=%.6g%s\n", d.Context.String(), d.Token, d.Probability, d.LogProb, marker)
	}
	fmt.Fprintf(&b, "log_prob: %.6g\n", details.LogProb)
	fmt.Fprintf(&b, "perplexity: %.6g", details.Perplexity)
	return textResult(b.String()), nil, nil
}

func formatStats(id string, stats *ngram.ModelStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", id)
	fmt.Fprintf(&b, "n: %d\n", stats.N)
	fmt.Fprintf(&b, "smoother: %s (alpha=%g, unseen_alpha=%g)\n", stats.SmootherName, stats.Alpha, stats.UnseenAlpha)
	fmt.Fprintf(&b, "normalise_length: %t\n", stats.NormaliseLength)
	fmt.Fprintf(&b, "vocabulary_size: %d\n", stats.VocabularySize)
	fmt.Fprintf(&b, "contexts: %d\n", stats.ContextCount)
	fmt.Fprintf(&b, "ngram_types: %d\n", stats.NGramCount)
	fmt.Fprintf(&b, "total_tokens: %d\n", stats.TotalTokens)
	fmt.Fprintf(&b, "texts: %d", stats.TextCount)
	return b.String()
}

// SetupHTTPRoutes mounts the streamable HTTP handler on the router at the
// configured MCP path
func (s *NgramServer) SetupHTTPRoutes(router *gin.Engine) {
	path := s.config.Mcp.Path
	s.logger.Info("Mounting MCP server", zap.String("path", path))
	router.Any(path, gin.WrapH(s.handler))
}
