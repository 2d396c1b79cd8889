package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	langchainagent "github.com/TSGCFO/langchain-agent"
	"github.com/TSGCFO/langchain-agent/agent"
	"github.com/TSGCFO/langchain-agent/analytics"
	"github.com/TSGCFO/langchain-agent/config"
	"github.com/TSGCFO/langchain-agent/server"
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Run and inspect tool-using agents",
	Long: `agentctl drives a task agent and a retrieval agent over an in-process message bus.
- run: plan a request into tool calls and execute them.
- query: answer a question from retrieved documents.
- analyze: aggregate the JSONL interaction, tool usage and evaluation logs.
- curate: build a balanced fine-tuning dataset from successful interactions.
- serve: expose all of the above over HTTP.`,
	SilenceUsage: true,
}

func main() {
	for _, envFile := range []string{".env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AGENTCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default agentctl.yaml when present)")
	flags.Bool("json", false, "output JSON")
	flags.String("provider", "", "model provider: mock, openai, anthropic or gemini")
	flags.String("model", "", "model name")
	flags.String("telemetry-dir", "", "directory holding the JSONL logs")
	flags.String("log-level", "", "debug, info, warn or error")
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("model.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model.name", flags.Lookup("model"))
	_ = viper.BindPFlag("telemetry.dir", flags.Lookup("telemetry-dir"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(curateCmd())
	rootCmd.AddCommand(serveCmd())
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <request>",
		Short: "Plan and execute a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				task, err := rt.ExecuteTask(ctx, strings.Join(args, " "))
				if task != nil {
					if perr := printTask(task, err); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func queryCmd() *cobra.Command {
	var contextText string
	var maxDocs int
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from retrieved documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				answer, err := rt.Query(ctx, strings.Join(args, " "), agent.QueryOptions{
					Context:      contextText,
					MaxDocuments: maxDocs,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"answer": answer})
				}
				fmt.Println(answer)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contextText, "context", "", "answer from this text instead of retrieving")
	cmd.Flags().IntVar(&maxDocs, "max-docs", 0, "documents to retrieve (default from config)")
	return cmd
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(_ context.Context, rt *langchainagent.Runtime) error {
				return printAgents(rt.Agents())
			})
		},
	}
}

func analyzeCmd() *cobra.Command {
	var windowDays int
	cmd := &cobra.Command{Use: "analyze", Short: "Aggregate the telemetry logs"}
	cmd.PersistentFlags().IntVar(&windowDays, "window-days", 0, "trailing window in days (default from config)")

	window := func(cfg *config.Config) int {
		if windowDays != 0 {
			return windowDays
		}
		return cfg.Analytics.WindowDays
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "Per-tool usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				stats, err := rt.Analyzer().AnalyzeToolUsage(ctx, window(rt.Config()))
				if err != nil {
					return err
				}
				return printToolStats(stats)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reasoning",
		Short: "Reasoning patterns and common phrases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				res, err := rt.Analyzer().AnalyzeReasoning(ctx)
				if err != nil {
					return err
				}
				return printReasoning(res)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "performance",
		Short: "Success rate, execution time and evaluation averages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				m, err := rt.Analyzer().CalculatePerformanceMetrics(ctx, window(rt.Config()))
				if err != nil {
					return err
				}
				return printPerformance(m)
			})
		},
	})
	return cmd
}

func curateCmd() *cobra.Command {
	var out string
	var minSamples, maxSamples int
	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Prepare a balanced fine-tuning dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				tc := rt.Config().Training
				if cmd.Flags().Changed("min-samples") {
					tc.MinSamplesPerTool = minSamples
				}
				if cmd.Flags().Changed("max-samples") {
					tc.MaxSamplesPerTool = maxSamples
				}
				set, err := rt.Curator().PrepareTrainingData(ctx, tc)
				if err != nil {
					return err
				}
				if err := writeDataset(out, set.Examples); err != nil {
					return err
				}
				return printTrainingSet(set, out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "training_data.jsonl", "output file, - for stdout")
	cmd.Flags().IntVar(&minSamples, "min-samples", 0, "drop tools with fewer examples")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "keep at most this many examples per tool")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *langchainagent.Runtime) error {
				cfg := rt.Config()
				if addr == "" {
					addr = cfg.Server.Addr
				}
				srv := server.New(rt, func(o *server.Options) {
					o.AllowedOrigins = cfg.Server.AllowedOrigins
					o.WindowDays = cfg.Analytics.WindowDays
					o.Training = cfg.Training
				})
				fmt.Printf("Serving agent API on http://%s/v1\n", addr)
				return srv.ListenAndServe(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// --- helpers ---

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides layers flags and AGENTCTL_* variables over the file.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if s := v.GetString("model.provider"); s != "" {
		cfg.Model.Provider = s
	}
	if s := v.GetString("model.name"); s != "" {
		cfg.Model.Name = s
	}
	if s := v.GetString("model.api_key"); s != "" {
		cfg.Model.APIKey = s
	}
	if s := v.GetString("telemetry.dir"); s != "" {
		cfg.Telemetry.Dir = s
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("bus.store"); s != "" {
		cfg.Bus.Store = s
	}
	if s := v.GetString("bus.path"); s != "" {
		cfg.Bus.Path = s
	}
}

func withRuntime(ctx context.Context, fn func(context.Context, *langchainagent.Runtime) error) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	rt, err := langchainagent.New(ctx, func(o *langchainagent.Options) { o.Config = cfg })
	if err != nil {
		return err
	}
	runErr := fn(ctx, rt)
	if err := rt.Shutdown(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func writeDataset(path string, examples []analytics.TrainingExample) error {
	if path == "-" {
		return analytics.WriteJSONL(os.Stdout, examples)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := analytics.WriteJSONL(f, examples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
