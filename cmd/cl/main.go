package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"caseline/internal/app"
	"caseline/internal/audit"
	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/server"
	"caseline/internal/store"
	"caseline/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Caseline CLI",
	Long: `Caseline drafts business cases through a staged, reviewed workflow.
A case moves draft -> design -> effort -> cost -> value; each stage is
generated by an agent and reviewed by a human gate. Approving the value
estimate combines the financial summary, and a final gate approves or
rejects the whole case. Every transition is recorded in the case history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("roles", "", "comma-separated caller roles (e.g. reviewer,approver)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("roles", rootCmd.PersistentFlags().Lookup("roles"))
}

func registerCommands() {
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(stageCmd("draft", "generate", "approve", "reject"))
	rootCmd.AddCommand(stageCmd("design", "generate", "approve", "reject"))
	rootCmd.AddCommand(stageCmd("effort", "generate", "approve", "reject"))
	rootCmd.AddCommand(stageCmd("cost", "generate", "approve", "reject"))
	rootCmd.AddCommand(stageCmd("value", "generate", "approve", "reject"))
	rootCmd.AddCommand(stageCmd("summary", "finalize"))
	rootCmd.AddCommand(stageCmd("final", "submit", "approve", "reject"))
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func caseCmd() *cobra.Command {
	c := &cobra.Command{Use: "case", Short: "Manage cases"}
	c.AddCommand(caseCreateCmd())
	c.AddCommand(caseShowCmd())
	c.AddCommand(caseListCmd())
	c.AddCommand(caseHistoryCmd())
	return c
}

func caseCreateCmd() *cobra.Command {
	var id, title, problem string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			payload, err := json.Marshal(workflow.CreatePayload{
				ID:               id,
				Title:            title,
				ProblemStatement: problem,
			})
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Orchestrator.Dispatch(ctx, workflow.Request{
					Action:   workflow.ActionCaseCreate,
					Payload:  payload,
					CallerID: viper.GetString("actor-id"),
					Roles:    callerRoles(),
				})
				if err != nil {
					return err
				}
				c, err := rt.Store.Get(ctx, res.CaseID)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "case id (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "case title")
	cmd.Flags().StringVar(&problem, "problem", "", "problem statement")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func caseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				c, err := rt.Store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func caseListCmd() *cobra.Command {
	var f store.Filters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if f.Status != "" && !workflow.KnownStatus(f.Status) {
					return fmt.Errorf("unknown status %q", f.Status)
				}
				cases, err := rt.Store.List(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cases)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Owner", "Updated"})
				for _, c := range cases {
					tw.AppendRow(table.Row{c.ID, c.Title, c.Status, c.OwnerID, c.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max results")
	cmd.Flags().StringVar(&f.CursorCreatedAt, "cursor-created-at", "", "pagination cursor (created_at)")
	cmd.Flags().StringVar(&f.CursorID, "cursor-id", "", "pagination cursor (id)")
	return cmd
}

func caseHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <case-id>",
		Short: "Show a case's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				c, err := rt.Store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c.History)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Kind", "Source", "Content"})
				for _, ev := range c.History {
					tw.AppendRow(table.Row{ev.TS, ev.Kind, ev.Source, ev.Content})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// stageCmd builds one command group per workflow stage; each verb
// dispatches the matching dotted action.
func stageCmd(stage string, verbs ...string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   stage,
		Short: fmt.Sprintf("%s stage actions", strings.ToUpper(stage[:1])+stage[1:]),
	}
	for _, verb := range verbs {
		action := stage + "." + verb
		sub := &cobra.Command{
			Use:   verb + " <case-id>",
			Short: fmt.Sprintf("Dispatch %s", action),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAction(cmd.Context(), action, args[0], nil)
			},
		}
		cmd.AddCommand(sub)
	}
	return cmd
}

func dispatchCmd() *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "dispatch <action> <case-id>",
		Short: "Dispatch any workflow action by name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return fmt.Errorf("--payload must be valid JSON")
				}
				raw = json.RawMessage(payload)
			}
			return runAction(cmd.Context(), args[0], args[1], raw)
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload for the action")
	return cmd
}

func runAction(ctx context.Context, action, caseID string, payload json.RawMessage) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		res, err := rt.Orchestrator.Dispatch(ctx, workflow.Request{
			CaseID:   caseID,
			Action:   action,
			Payload:  payload,
			CallerID: viper.GetString("actor-id"),
			Roles:    callerRoles(),
		})
		if err != nil {
			return err
		}
		return printJSONOrTable(res)
	})
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Audit log",
		Long:  "Queries the cross-case audit mirror. Case history remains authoritative.",
	}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var caseID, kind string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Audit.Latest(ctx, audit.Filters{CaseID: caseID, Kind: kind, Limit: n})
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&caseID, "case", "", "case id filter")
	cmd.Flags().StringVar(&kind, "kind", "", "event kind filter")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name, roles string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor required")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				secret, err := store.NewAPIKeySecret()
				if err != nil {
					return err
				}
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actor,
					Name:      name,
					Roles:     splitRoles(roles),
					KeyHash:   store.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := rt.APIKeys.Create(ctx, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"roles":    key.Roles,
					"key":      secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&roles, "roles", "", "comma-separated roles carried by the key")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				keys, err := rt.APIKeys.List(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Roles", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, strings.Join(k.Roles, ","), k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return rt.APIKeys.Delete(ctx, args[0])
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			rt, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer rt.Close()
			authCfg := server.AuthConfig{
				JWTSecret:        os.Getenv("CASELINE_JWT_SECRET"),
				AllowActorHeader: allowActorHeader,
				Logger:           rt.Logger,
			}
			if authCfg.JWTSecret == "" && !allowActorHeader {
				return fmt.Errorf("CASELINE_JWT_SECRET is required for bearer auth (or pass --allow-actor-header for development)")
			}
			handler, err := server.New(server.Config{
				Orchestrator: rt.Orchestrator,
				Store:        rt.Store,
				Audit:        rt.Audit,
				APIKeys:      rt.APIKeys,
				BasePath:     basePath,
				Auth:         authCfg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Caseline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept unauthenticated X-Actor-Id headers (dev only)")
	return cmd
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func callerRoles() []string {
	return splitRoles(viper.GetString("roles"))
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
