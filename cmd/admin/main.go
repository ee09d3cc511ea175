// Package main: admin command line client of the relay.
//
// The relay url and the team id are read from flags, from ADMIN_RELAY and ADMIN_TEAM or from a config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tarancss/adminrelay/admin"
)

// Config keys.
const (
	keyRelay   = "relay"
	keyTeam    = "team"
	keyVerbose = "verbose"
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Manage the projects of a team through the relay",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !viper.GetBool(keyVerbose) {
			log.SetOutput(io.Discard)
		}
		return loadConfig()
	},
}

var cfgFile string

func loadConfig() error {
	if cfgFile == "" {
		return nil
	}

	viper.SetConfigFile(cfgFile)

	return viper.ReadInConfig()
}

// newConsole returns a console on the configured relay, with its project list loaded.
func newConsole(ctx context.Context) (*admin.Console, error) {
	cl, err := admin.NewClient(viper.GetString(keyRelay))
	if err != nil {
		return nil, err
	}

	con := admin.NewConsole(cl, viper.GetString(keyTeam))

	if err = busy("Loading projects", func() error { return con.Refresh(ctx, false) }); err != nil {
		return nil, err
	}

	return con, nil
}

func listProjects(cmd *cobra.Command, args []string) error {
	con, err := newConsole(cmd.Context())
	if err != nil {
		return err
	}

	printProjects(os.Stdout, con.Projects())

	return nil
}

func createProject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if viper.GetString(keyTeam) == "" {
		return errors.New("team id is required, use --team or ADMIN_TEAM")
	}

	name, _ := cmd.Flags().GetString("name")
	domains, _ := cmd.Flags().GetStringSlice("domain")

	var err error
	if name == "" {
		if name, err = promptText("Project name"); err != nil {
			return err
		}
	}
	if len(domains) == 0 {
		d, err := promptText("Domains (comma separated)")
		if err != nil {
			return err
		}
		domains = strings.Split(d, ",")
	}

	cl, err := admin.NewClient(viper.GetString(keyRelay))
	if err != nil {
		return err
	}

	con := admin.NewConsole(cl, viper.GetString(keyTeam))
	con.SetProjectName(name)
	for _, d := range domains {
		con.AddDomain(d)
	}

	err = busy("Creating project", func() error { return con.Create(ctx) })
	printResult(os.Stdout, con.Result())
	if err != nil {
		return err
	}

	printProjects(os.Stdout, con.Projects())

	return nil
}

func deleteProject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	con, err := newConsole(ctx)
	if err != nil {
		return err
	}

	if err = con.RequestDelete(args[0]); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := promptConfirm(fmt.Sprintf("Delete project %s", args[0]))
		if err != nil {
			return err
		}
		if !ok {
			con.CancelDelete()
			fmt.Println("Cancelled.")

			return nil
		}
	}

	err = busy("Deleting project", func() error { return con.ConfirmDelete(ctx) })
	printResult(os.Stdout, con.Result())

	return err
}

func updateSettings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	con, err := newConsole(ctx)
	if err != nil {
		return err
	}

	if err = con.BeginEdit(args[0]); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	f := cmd.Flags()
	if f.Changed("max-spend") {
		v, _ := f.GetString("max-spend")
		if err = con.SetMaxSpend(v); err != nil {
			return err
		}
	}

	edits := []struct {
		flag string
		fn   func(string) error
	}{
		{"add-contract", con.AddContractAddress},
		{"remove-contract", con.RemoveContractAddress},
		{"allow-wallet", con.AddAllowedWallet},
		{"unallow-wallet", con.RemoveAllowedWallet},
		{"block-wallet", con.AddBlockedWallet},
		{"unblock-wallet", con.RemoveBlockedWallet},
	}
	for _, e := range edits {
		vs, _ := f.GetStringSlice(e.flag)
		for _, v := range vs {
			if err = e.fn(v); err != nil {
				return err
			}
		}
	}

	printSettings(os.Stdout, con.State())

	if yes, _ := f.GetBool("yes"); !yes {
		ok, err := promptConfirm("Save settings")
		if err != nil {
			return err
		}
		if !ok {
			con.CancelEdit()
			fmt.Println("Cancelled.")

			return nil
		}
	}

	err = busy("Saving settings", func() error { return con.SaveSettings(ctx) })
	printResult(os.Stdout, con.Result())

	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (json, yaml or toml)")
	pf.String(keyRelay, "http://localhost:3000", "relay url")
	pf.String(keyTeam, "", "team id, needed to create projects")
	pf.BoolP(keyVerbose, "v", false, "log every call")

	for _, k := range []string{keyRelay, keyTeam, keyVerbose} {
		_ = viper.BindPFlag(k, pf.Lookup(k))
	}

	viper.SetEnvPrefix("admin")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show all the projects of the team",
		Args:  cobra.NoArgs,
		RunE:  listProjects,
	})

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE:  createProject,
	}
	createCmd.Flags().String("name", "", "project name")
	createCmd.Flags().StringSlice("domain", nil, "allowed domain, can be repeated")
	rootCmd.AddCommand(createCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <projectId>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteProject,
	}
	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(deleteCmd)

	settingsCmd := &cobra.Command{
		Use:   "settings <projectId>",
		Short: "Update the bundler settings of a project",
		Args:  cobra.ExactArgs(1),
		RunE:  updateSettings,
	}
	sf := settingsCmd.Flags()
	sf.String("max-spend", "", "maximum spend in USD")
	sf.StringSlice("add-contract", nil, "restrict the bundler to this contract")
	sf.StringSlice("remove-contract", nil, "remove a contract restriction")
	sf.StringSlice("allow-wallet", nil, "add a wallet to the allowlist")
	sf.StringSlice("unallow-wallet", nil, "remove a wallet from the allowlist")
	sf.StringSlice("block-wallet", nil, "add a wallet to the blocklist")
	sf.StringSlice("unblock-wallet", nil, "remove a wallet from the blocklist")
	sf.BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(settingsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(color.Red(err.Error()))
		os.Exit(1)
	}
}
