// Command gencoded is the coding-assistant agent runtime: a stdio JSON-RPC
// server that a terminal UI or editor extension drives via the wire
// protocol (initialize/prompt/cancel), backed by one Soul per process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gencode-ai/agentcore/internal/agent"
	"github.com/gencode-ai/agentcore/internal/approval"
	agentcontext "github.com/gencode-ai/agentcore/internal/context"
	"github.com/gencode-ai/agentcore/internal/denwarenji"
	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/llm/anthropic"
	"github.com/gencode-ai/agentcore/internal/llm/google"
	"github.com/gencode-ai/agentcore/internal/llm/openai"
	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/soul"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/toolset/builtin"
	"github.com/gencode-ai/agentcore/internal/wire"
	"go.uber.org/zap"
)

const version = "0.1.0"

func init() {
	_ = godotenv.Load()
	_ = log.Init()
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gencoded",
	Short: "gencoded - agent runtime for the gencode coding assistant",
	Long: `gencoded speaks the gencode wire protocol over stdin/stdout: a UI
sends initialize/prompt/cancel requests and receives streamed turn events
back, driven by one Soul per process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gencoded version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Flags().String("context-file", "", "path to context.jsonl (defaults to .gencode/context.jsonl in the working directory)")
	rootCmd.Flags().String("wire-tee", "", "path to tee every wire event/request to, as JSON lines (defaults to unset)")
	rootCmd.Flags().Bool("yolo", false, "auto-approve every tool call without prompting")
}

func runServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	contextPath, _ := rootCmd.Flags().GetString("context-file")
	if contextPath == "" {
		contextPath = filepath.Join(".gencode", "context.jsonl")
	}
	if err := os.MkdirAll(filepath.Dir(contextPath), 0o755); err != nil {
		return fmt.Errorf("gencoded: creating context directory: %w", err)
	}

	agentContext, err := agentcontext.Open(contextPath)
	if err != nil {
		return fmt.Errorf("gencoded: opening context: %w", err)
	}
	defer agentContext.Close()

	teePath, _ := rootCmd.Flags().GetString("wire-tee")
	w, err := wire.New(teePath)
	if err != nil {
		return fmt.Errorf("gencoded: opening wire: %w", err)
	}
	defer w.Close()

	yolo, _ := rootCmd.Flags().GetBool("yolo")
	approvalGate := approval.New(nil, yolo)

	ts := toolset.New(approvalGate, nil)
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("gencoded: getwd: %w", err)
	}
	dmail := denwarenji.New()
	ts.RegisterBuiltin(&builtin.Bash{Dir: cwd})
	ts.RegisterBuiltin(&builtin.ReadFile{Dir: cwd})
	ts.RegisterBuiltin(&builtin.WriteFile{Dir: cwd})
	ts.RegisterBuiltin(&builtin.WebFetch{})
	ts.RegisterBuiltin(&builtin.SendDMail{DMail: dmail})

	model, err := selectModel(ctx)
	if err != nil {
		// A missing LLM is not fatal: prompts fail with LLMNotSetError until
		// the UI configures one out-of-band (future /model command), matching
		// spec §7's "no LLM provider configured" as a reportable, recoverable
		// condition rather than a startup abort.
		log.Logger().Warn("no LLM provider configured at startup", zap.Error(err))
	}

	cfg := agent.Config{
		Name:        "root",
		SystemPrompt: defaultSystemPrompt,
		LoopControl: agent.LoopControl{},
	}
	rt := &agent.Runtime{
		Config:      cfg,
		Env:         buildEnv(cwd),
		LLM:         model,
		Wire:        w,
		Context:     agentContext,
		Approval:    approvalGate,
		DMail:       dmail,
		Toolset:     ts,
		LaborMarket: agent.NewLaborMarket(),
	}
	a := agent.New(cfg, rt)
	s := soul.New(a, nil)
	ts.RegisterBuiltin(&builtin.Task{Spawner: s})

	server := wire.NewServer(os.Stdin, os.Stdout, w, s)
	return server.Run(ctx)
}

const defaultSystemPrompt = `You are gencode, an AI coding assistant running in a terminal. Use the
available tools to read, write, and run code on the user's behalf. Ask for
approval is handled by the host; focus on making correct, minimal changes.`

func buildEnv(cwd string) agent.Env {
	env := agent.Env{Cwd: cwd}
	if entries, err := os.ReadDir(cwd); err == nil {
		for _, e := range entries {
			env.Ls += e.Name() + "\n"
		}
	}
	if data, err := os.ReadFile(filepath.Join(cwd, "AGENTS.md")); err == nil {
		env.AgentsMD = string(data)
	}
	return env
}

// selectModel picks the first configured provider found in the environment,
// checked in the order a developer is most likely to have set one up.
// MaxContextSize/Capabilities are conservative defaults for each family; a
// real deployment would source these from a model catalog instead.
func selectModel(ctx context.Context) (*llm.Model, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		model := os.Getenv("GENCODE_MODEL")
		if model == "" {
			model = "claude-sonnet-4-20250514"
		}
		return &llm.Model{
			Provider:       anthropic.NewAPIKey(model),
			MaxContextSize: 200_000,
			Capabilities:   map[llm.Capability]bool{llm.CapThinking: true, llm.CapImageInput: true},
		}, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		model := os.Getenv("GENCODE_MODEL")
		if model == "" {
			model = "gpt-4o"
		}
		return &llm.Model{
			Provider:       openai.NewAPIKey(model),
			MaxContextSize: 128_000,
			Capabilities:   map[llm.Capability]bool{llm.CapImageInput: true},
		}, nil
	}
	if key := os.Getenv("MOONSHOT_API_KEY"); key != "" {
		model := os.Getenv("GENCODE_MODEL")
		if model == "" {
			model = "kimi-k2-0711-preview"
		}
		return &llm.Model{
			Provider:       openai.NewCompatible("https://api.moonshot.cn/v1", key, model),
			MaxContextSize: 128_000,
			Capabilities:   map[llm.Capability]bool{},
		}, nil
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		model := os.Getenv("GENCODE_MODEL")
		if model == "" {
			model = "gemini-2.0-flash"
		}
		provider, err := google.NewAPIKey(ctx, model)
		if err != nil {
			return nil, fmt.Errorf("gencoded: google provider: %w", err)
		}
		return &llm.Model{
			Provider:       provider,
			MaxContextSize: 1_000_000,
			Capabilities:   map[llm.Capability]bool{llm.CapThinking: true, llm.CapImageInput: true, llm.CapVideoInput: true},
		}, nil
	}
	return nil, fmt.Errorf("no provider API key set (ANTHROPIC_API_KEY, OPENAI_API_KEY, MOONSHOT_API_KEY, GOOGLE_API_KEY)")
}
