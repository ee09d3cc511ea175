package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/logrusorgru/aurora"
	"github.com/manifoldco/promptui"

	"github.com/tarancss/adminrelay/admin"
	"github.com/tarancss/adminrelay/lib/project"
)

var color = aurora.NewAurora(true)

var s = &spinner.Spinner{}

func startSpinner(msg string) {
	s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = os.Stdout
	if msg != "" {
		s.Suffix = " " + msg
	}

	s.Start()
}

func stopSpinner() {
	s.Stop()
}

// busy runs fn while a spinner shows msg.
func busy(msg string, fn func() error) error {
	startSpinner(msg)
	defer stopSpinner()

	return fn()
}

func promptText(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
	}
	return prompt.Run()
}

// promptConfirm asks a yes/no question, false when the user says no.
func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// printResult prints the banner, green on success and red otherwise.
func printResult(w io.Writer, r *admin.Result) {
	if r == nil {
		return
	}
	if r.Success {
		fmt.Fprintf(w, "%s %s\n", color.Green("✔"), r.Message)
		return
	}
	fmt.Fprintf(w, "%s %s\n", color.Red("✘"), color.Red(r.Message))
}

// summaryBadges renders the bundler summary of a project the way its card shows it.
func summaryBadges(p project.Project) string {
	sum := p.Summary()

	var badges []string
	if sum.MaxSpend != "" {
		badges = append(badges, fmt.Sprintf("Spend Limit: %s %s", sum.MaxSpend, sum.MaxSpendUnit))
	}
	if sum.Contracts > 0 {
		badges = append(badges, fmt.Sprintf("Restricted to %d contract(s)", sum.Contracts))
	}
	if sum.AllowedWallets > 0 {
		badges = append(badges, fmt.Sprintf("%d allowlisted wallet(s)", sum.AllowedWallets))
	}
	if sum.BlockedWallets > 0 {
		badges = append(badges, fmt.Sprintf("%d blocklisted wallet(s)", sum.BlockedWallets))
	}

	return strings.Join(badges, " | ")
}

func printProjects(w io.Writer, ps []project.Project) {
	if len(ps) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return
	}

	for _, p := range ps {
		fmt.Fprintf(w, "%s (%s)\n", color.Bold(p.Name), color.Faint(p.ID))
		if len(p.Domains) > 0 {
			fmt.Fprintf(w, "  domains: %s\n", strings.Join(p.Domains, ", "))
		}
		if b := summaryBadges(p); b != "" {
			fmt.Fprintf(w, "  %s\n", b)
		}
	}
}

func list(l []string) string {
	if len(l) == 0 {
		return "none"
	}
	return strings.Join(l, ", ")
}

// printSettings prints the settings form being edited.
func printSettings(w io.Writer, st admin.State) {
	fmt.Fprintf(w, "Settings of %s (%s)\n", color.Bold(st.EditingName), st.Editing)
	fmt.Fprintf(w, "  max spend: %s\n", st.Settings.MaxSpend)
	fmt.Fprintf(w, "  allowed contracts: %s\n", list(st.Settings.AllowedContractAddresses))
	fmt.Fprintf(w, "  allowed wallets: %s\n", list(st.Settings.AllowedWallets))
	fmt.Fprintf(w, "  blocked wallets: %s\n", list(st.Settings.BlockedWallets))
}
