package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rmax-ai/actionflow/pkg/api"
	"github.com/rmax-ai/actionflow/pkg/client"
	"github.com/rmax-ai/actionflow/pkg/controller"
	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/mcp"
	"github.com/rmax-ai/actionflow/pkg/rpc"
	"github.com/rmax-ai/actionflow/pkg/session"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

func loginCmd() *cobra.Command {
	var server, database, username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the server and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" || database == "" || username == "" {
				return errors.New("--server, --database and --username are required")
			}
			if password == "" {
				password = viper.GetString("password")
			}
			if password == "" {
				var err error
				password, err = readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
			}

			log := logger()
			rc := rpc.New(server, rpc.WithTimeout(viper.GetDuration("timeout")), rpc.WithLogger(log))
			uid, err := rc.Authenticate(cmd.Context(), database, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			sess := &session.Context{
				ServerURL: server,
				Database:  database,
				Username:  username,
				UID:       uid,
				Password:  password,
			}
			return withStore(cmd.Context(), func(ctx context.Context, st session.Store) error {
				if err := st.Save(ctx, viper.GetString("session-key"), sess); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s (uid %d)\n", database, username, uid)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server URL, e.g. https://erp.example.com")
	cmd.Flags().StringVar(&database, "database", "", "database name")
	cmd.Flags().StringVar(&username, "username", "", "login")
	cmd.Flags().StringVar(&password, "password", "", "password (defaults to ACTIONFLOW_PASSWORD or a prompt)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st session.Store) error {
				return st.Delete(ctx, viper.GetString("session-key"))
			})
		},
	}
}

func productsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List products that carry a workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), logger(), func(ctx context.Context, c *client.Client) error {
				return printProducts(cmd.OutOrStdout(), viper.GetString("output"), c.ListProducts(ctx))
			})
		},
	}
}

func stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List order stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), logger(), func(ctx context.Context, c *client.Client) error {
				return printStages(cmd.OutOrStdout(), viper.GetString("output"), c.ListOrderStages(ctx))
			})
		},
	}
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the workflow of the product",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				return printGraph(cmd.OutOrStdout(), viper.GetString("output"), ctrl.Graph())
			})
		},
	}
}

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <source> <target>",
		Short: "Add the relation source -> target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, target, err := parseEdgeArgs(args)
			if err != nil {
				return err
			}
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				if err := ctrl.Connect(ctx, source, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Connected %d -> %d\n", source, target)
				return nil
			})
		},
	}
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <source> <target>",
		Short: "Remove the relation source -> target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, target, err := parseEdgeArgs(args)
			if err != nil {
				return err
			}
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				if err := ctrl.Disconnect(ctx, graph.EdgeID(source, target)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %d -> %d\n", source, target)
				return nil
			})
		},
	}
}

func createCmd() *cobra.Command {
	var (
		from  int64
		draft = workflow.NewDraft()
		state string
		prio  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an action, optionally connected from an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if draft.State, err = parseState(state); err != nil {
				return err
			}
			if draft.Priority, err = parsePriority(prio); err != nil {
				return err
			}
			var source *int64
			if cmd.Flags().Changed("from") {
				source = &from
			}
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				before := make(map[int64]bool)
				for _, n := range ctrl.Graph().Nodes {
					before[n.ID] = true
				}
				if err := ctrl.CreateDraft(source); err != nil {
					return err
				}
				if err := ctrl.ConfirmCreate(ctx, draft); err != nil {
					return err
				}
				for _, n := range ctrl.Graph().Nodes {
					if !before[n.ID] {
						fmt.Fprintf(cmd.OutOrStdout(), "Created action %d\n", n.ID)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "action name")
	cmd.Flags().StringVar(&draft.Description, "description", "", "description")
	cmd.Flags().StringVar(&state, "state", string(workflow.StateDraft), "state (draft, in_progress, done, cancelled)")
	cmd.Flags().StringVar(&prio, "priority", string(workflow.PriorityLow), "priority (low, medium, high, urgent)")
	cmd.Flags().Int64Var(&draft.StageID, "stage", 0, "order stage id")
	cmd.Flags().BoolVar(&draft.IsAutomatic, "automatic", false, "run automatically")
	cmd.Flags().BoolVar(&draft.CompletesOrderLine, "completes-order-line", false, "completes the order line")
	cmd.Flags().BoolVar(&draft.RequireEvidence, "require-evidence", false, "requires evidence")
	cmd.Flags().Int64Var(&from, "from", 0, "connect the new action from this action id")
	return cmd
}

func updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			fields, err := fieldsFromFlags(cmd)
			if err != nil {
				return err
			}
			if fields.Empty() {
				return errors.New("nothing to update")
			}
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				if err := ctrl.SelectNode(id); err != nil {
					return err
				}
				if err := ctrl.UpdateSelected(ctx, fields); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated action %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "action name")
	cmd.Flags().String("description", "", "description")
	cmd.Flags().String("state", "", "state (draft, in_progress, done, cancelled)")
	cmd.Flags().String("priority", "", "priority (low, medium, high, urgent)")
	cmd.Flags().Int64("stage", 0, "order stage id, 0 clears it")
	cmd.Flags().Bool("automatic", false, "run automatically")
	cmd.Flags().Bool("completes-order-line", false, "completes the order line")
	cmd.Flags().Bool("require-evidence", false, "requires evidence")
	return cmd
}

// fieldsFromFlags sets only the members whose flag was given.
func fieldsFromFlags(cmd *cobra.Command) (workflow.Fields, error) {
	var f workflow.Fields
	flags := cmd.Flags()
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		f.Name = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		f.Description = &v
	}
	if flags.Changed("state") {
		v, _ := flags.GetString("state")
		s, err := parseState(v)
		if err != nil {
			return f, err
		}
		f.State = &s
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		p, err := parsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = &p
	}
	if flags.Changed("stage") {
		v, _ := flags.GetInt64("stage")
		f.StageID = &v
	}
	if flags.Changed("automatic") {
		v, _ := flags.GetBool("automatic")
		f.IsAutomatic = &v
	}
	if flags.Changed("completes-order-line") {
		v, _ := flags.GetBool("completes-order-line")
		f.CompletesOrderLine = &v
	}
	if flags.Changed("require-evidence") {
		v, _ := flags.GetBool("require-evidence")
		f.RequireEvidence = &v
	}
	return f, nil
}

func parseState(v string) (workflow.State, error) {
	s := workflow.State(v)
	if !s.Valid() {
		return "", fmt.Errorf("invalid state %q", v)
	}
	return s, nil
}

func parsePriority(v string) (workflow.Priority, error) {
	p := workflow.Priority(v)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", v)
	}
	return p, nil
}

func deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				rec, ok := ctrl.Graph().Record(id)
				if !ok {
					return &controller.OpError{Op: controller.OpDeleteNode, Err: controller.ErrUnknownNode}
				}
				if !yes {
					answer, err := readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete %q? [y/N] ", rec.Name))
					if err != nil {
						return err
					}
					if !isYes(answer) {
						return nil
					}
				}
				if err := ctrl.DeleteNode(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted action %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, certFile, keyFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow graph over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				srv := api.NewServer(ctrl, addr, logger())
				srv.SetTLS(certFile, keyFile)
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(shutdownCtx)
				}()
				return srv.Start()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "listen address")
	cmd.Flags().StringVar(&certFile, "tls-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "tls-key", "", "TLS key file")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the workflow editor to MCP agents over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
				return mcp.NewServer(ctrl, version).Serve()
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid action id %q", s)
	}
	return id, nil
}

func parseEdgeArgs(args []string) (int64, int64, error) {
	source, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	target, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return source, target, nil
}

func readLine(in io.Reader, prompt io.Writer, question string) (string, error) {
	fmt.Fprint(prompt, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
