package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
	"github.com/Promptonauts/releasepipe/pkg/gitlog"
	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/observability"
	"github.com/Promptonauts/releasepipe/pkg/plan"
	"github.com/Promptonauts/releasepipe/pkg/store"
)

// commitSeparator splits messages in a --commits-file.
const commitSeparator = "---"

type planFlags struct {
	branch      string
	lastVersion string
	from        string
	to          string
	repo        string
	commitsFile string
	messages    []string
	date        string
	record      string
	asJSON      bool
}

func newPlanCommand(a *app) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Dry-run a release: next version, tag, notes and rendered commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, source, err := a.loadDescriptor(args)
			if err != nil {
				return err
			}
			if f.branch == "" {
				f.branch = d.Branches[0]
			}
			commits, lastVersion, err := a.collectCommits(cmd, &d, f)
			if err != nil {
				return err
			}

			in := plan.Input{
				Branch:      f.branch,
				LastVersion: lastVersion,
				Commits:     commits,
				Date:        f.date,
			}
			p, err := plan.Build(&d, in)
			a.metrics.Counter(observability.MetricPlans).Inc()
			if err != nil {
				if f.record != "" {
					if recErr := a.recordFailure(f.record, &d, in, err); recErr != nil {
						a.logger.Warn("record failed plan", "descriptor", f.record, "error", recErr)
					}
				}
				return err
			}
			if p.Released() {
				a.metrics.Counter(observability.MetricPlanReleases).Inc()
			}
			a.logger.Debug("plan built", "source", source, "branch", p.Branch, "commits", len(commits), "release", p.Release)

			if f.record != "" {
				if err := a.recordPlan(f.record, &d, p); err != nil {
					return err
				}
			}
			if f.asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			printPlan(a.out, p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.branch, "branch", "b", "", "branch to plan for (default: first configured branch)")
	cmd.Flags().StringVar(&f.lastVersion, "last-version", "", "last released version (default: from the latest git tag)")
	cmd.Flags().StringVar(&f.from, "from", "", "git revision to start after (default: the last release tag)")
	cmd.Flags().StringVar(&f.to, "to", "HEAD", "git revision to end at")
	cmd.Flags().StringVar(&f.repo, "repo", ".", "git repository to read history from")
	cmd.Flags().StringVar(&f.commitsFile, "commits-file", "", "read commit messages from a file, separated by '---' lines (- for stdin)")
	cmd.Flags().StringArrayVarP(&f.messages, "commit", "m", nil, "commit message to analyze instead of git history (repeatable)")
	cmd.Flags().StringVar(&f.date, "date", "", "release date for the notes (default: today)")
	cmd.Flags().StringVar(&f.record, "record", "", "persist the plan under this descriptor name")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the plan as JSON")
	return cmd
}

// collectCommits gathers commits from flags, a file, or git history, and
// resolves the last released version.
func (a *app) collectCommits(cmd *cobra.Command, d *models.Descriptor, f planFlags) ([]analyzer.Commit, string, error) {
	var raw []string
	raw = append(raw, f.messages...)
	if f.commitsFile != "" {
		fromFile, err := readCommitsFile(f.commitsFile, cmd.InOrStdin())
		if err != nil {
			return nil, "", err
		}
		raw = append(raw, fromFile...)
	}
	if len(raw) > 0 {
		commits := make([]analyzer.Commit, len(raw))
		for i, msg := range raw {
			commits[i] = analyzer.ParseCommit(msg)
		}
		return commits, f.lastVersion, nil
	}

	git := gitlog.Collector{RepoPath: f.repo}
	tagFormat := d.TagFormat
	if tagFormat == "" {
		tagFormat = plan.DefaultTagFormat
	}
	from, lastVersion := f.from, f.lastVersion
	if from == "" || lastVersion == "" {
		tag, err := git.LastTag(cmd.Context(), strings.ReplaceAll(tagFormat, "${version}", "*"))
		switch {
		case errors.Is(err, gitlog.ErrNoTag):
			a.logger.Info("no release tag found, planning a first release")
		case err != nil:
			return nil, "", err
		default:
			if from == "" {
				from = tag
			}
			if lastVersion == "" {
				lastVersion = gitlog.VersionFromTag(tag, tagFormat)
			}
		}
	}
	commits, err := git.Commits(cmd.Context(), from, f.to)
	if err != nil {
		return nil, "", err
	}
	return commits, lastVersion, nil
}

func readCommitsFile(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open commits file: %w", err)
		}
		defer file.Close()
		r = file
	}

	var messages []string
	var current []string
	flush := func() {
		msg := strings.TrimSpace(strings.Join(current, "\n"))
		if msg != "" {
			messages = append(messages, msg)
		}
		current = current[:0]
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == commitSeparator {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commits file: %w", err)
	}
	flush()
	return messages, nil
}

// recordPlan stores p against the named descriptor.
func (a *app) recordPlan(name string, d *models.Descriptor, p *plan.Plan) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := registered(st, name, d)
	if err != nil {
		return err
	}
	record := plan.Record(p, rec.Name, rec.Revision)
	if err := st.CreatePlan(record); err != nil {
		return err
	}
	a.logger.Info("plan recorded", "descriptor", rec.Name, "revision", rec.Revision, "id", record.ID)
	return nil
}

// recordFailure stores a Failed plan for a build that did not succeed.
func (a *app) recordFailure(name string, d *models.Descriptor, in plan.Input, cause error) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := registered(st, name, d)
	if err != nil {
		return err
	}
	failed, err := plan.SaveFailure(st, rec.Name, rec.Revision, in, cause)
	if err != nil {
		return err
	}
	a.logger.Info("failed plan recorded", "descriptor", rec.Name, "revision", rec.Revision, "id", failed.ID)
	return nil
}

// registered returns the stored revision of d under name, registering a new
// revision first when the stored one differs.
func registered(st store.Store, name string, d *models.Descriptor) (*models.DescriptorRecord, error) {
	rec, err := st.GetDescriptor(name)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !reflect.DeepEqual(rec.Descriptor, *d)) {
		rec = &models.DescriptorRecord{Name: name, Descriptor: *d}
		err = st.PutDescriptor(rec)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func printPlan(w io.Writer, p *plan.Plan) {
	for _, warn := range p.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cd := range p.Decision.Commits {
		rule := "-"
		if cd.Rule >= 0 {
			rule = fmt.Sprintf("rule %d", cd.Rule)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", cd.Release, rule, cd.Commit.Subject)
	}
	_ = tw.Flush()

	if !p.Released() {
		fmt.Fprintf(w, "no release on %s (%d commits)\n", p.Branch, len(p.Decision.Commits))
		return
	}
	last := p.LastVersion
	if last == "" {
		last = "none"
	}
	fmt.Fprintf(w, "%s release on %s: %s -> %s (tag %s)\n", p.Release, p.Branch, last, p.NextVersion, p.GitTag)
	for _, step := range p.Steps {
		fmt.Fprintf(w, "  %s %s: %s\n", step.Stage, step.Option, step.Value)
	}
	if p.Changelog != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(p.Changelog, "\n"))
	}
}

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history NAME",
		Short: "List recorded plans for a descriptor, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.PlanHistory
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			plans, err := st.ListPlans(args[0], limit)
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintf(a.out, "no plans recorded for %s\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tREVISION\tBRANCH\tSTATE\tRELEASE\tVERSION\tID")
			for _, p := range plans {
				version := p.NextVersion
				if version == "" {
					version = "-"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
					p.CreatedAt.Format("2006-01-02 15:04:05"), p.Revision, p.Branch, p.State, p.Magnitude, version, p.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum plans to list (default: RELEASEPIPE_PLAN_HISTORY)")
	return cmd
}
