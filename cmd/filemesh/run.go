package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/engine"
)

var (
	runTrace  bool
	runRender bool
	runSteps  bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a single request and print the answer",
	Example: `  filemesh run "Create a file named 'a.txt' with content 'hi'"
  filemesh run --trace "How many folders are in ./docs?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fm, err := newMesh(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		_, steps, results := fm.Invoke(cmd.Context(), strings.Join(args, " "))
		for e := range steps {
			if runSteps {
				printStep(out, e)
			}
		}
		res := <-results

		if err := printResult(out, res); err != nil {
			return err
		}

		if runTrace {
			if err := printTrace(out, res.Trace); err != nil {
				return err
			}
		}

		if !res.OK() {
			return fmt.Errorf("run %s failed with status %d", res.RunID, res.Status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Dump the run trace as YAML")
	runCmd.Flags().BoolVar(&runRender, "render", false, "Render the answer as markdown")
	runCmd.Flags().BoolVar(&runSteps, "steps", false, "Print each step as it completes")
}

func printStep(w io.Writer, e core.TraceEntry) {
	faint := color.New(color.Faint)

	detail := ""
	if e.Node == core.SupervisorNode {
		detail = "-> " + e.State.Next.String()
	} else if last, ok := e.State.Last(); ok {
		detail = truncate(last.Content, 80)
	}

	fmt.Fprintf(w, "%s %s %s\n", faint.Sprintf("[%02d]", e.Step), color.CyanString(e.Node), detail)
}

func printResult(w io.Writer, res *engine.Result) error {
	status := color.New(color.FgGreen, color.Bold)
	if !res.OK() {
		status = color.New(color.FgRed, color.Bold)
	}

	fmt.Fprintf(w, "%s %s (%s)\n", status.Sprintf("%d", res.Status), res.RunID, res.Duration.Round(time.Millisecond))

	text := res.Message()
	if runRender && res.OK() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return err
		}

		rendered, err := r.Render(text)
		if err != nil {
			return err
		}
		text = rendered
	}

	fmt.Fprintln(w, text)
	return nil
}

func printTrace(w io.Writer, trace core.Trace) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	return enc.Encode(map[string]any{"trace": trace})
}

// truncate collapses whitespace and cuts s to n runes.
func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
