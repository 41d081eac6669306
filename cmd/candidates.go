package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/documents"
	"github.com/sells-group/candidate-profiler/internal/events"
	"github.com/sells-group/candidate-profiler/internal/store"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Inspect and manage candidates and jobs",
}

var (
	addName   string
	addEmail  string
	addPhone  string
	addJobID  string
	addResume string
)

var candidatesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a candidate, uploading their résumé",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var docs documents.Source
		if addResume != "" {
			if docs, err = documents.NewSource(ctx, cfg.Documents); err != nil {
				return err
			}
		}

		c := &candidate.Candidate{JobID: addJobID, Name: addName, Email: addEmail, Phone: addPhone}
		if err := addCandidate(ctx, st, docs, c, addResume); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

// addCandidate uploads resumePath, if set, under a key derived from the new
// candidate ID and creates the candidate in the first enrichment stage.
func addCandidate(ctx context.Context, st store.Store, docs documents.Source, c *candidate.Candidate, resumePath string) error {
	if strings.TrimSpace(c.Name) == "" {
		return eris.New("candidate name is required")
	}
	if c.JobID != "" {
		if _, err := st.GetJob(ctx, c.JobID); err != nil {
			return eris.Wrapf(err, "job %s", c.JobID)
		}
	}
	c.ID = uuid.NewString()

	if resumePath != "" {
		data, err := os.ReadFile(resumePath) //nolint:gosec
		if err != nil {
			return eris.Wrap(err, "read résumé")
		}
		key := c.ID + "/" + filepath.Base(resumePath)
		if err := docs.Put(ctx, key, data); err != nil {
			return err
		}
		c.ResumePath = key
	}
	c.State = candidate.ExtractText
	return st.CreateCandidate(ctx, c)
}

var candidatesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one candidate with its enrichment data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := st.GetCandidate(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

var (
	listState string
	listJobID string
	listLimit int
)

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		filter := store.CandidateFilter{JobID: listJobID, Limit: listLimit}
		if listState != "" {
			s, err := candidate.ParseState(listState)
			if err != nil {
				return err
			}
			filter.State = s
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListCandidates(ctx, filter)
		if err != nil {
			return err
		}
		return writeCandidateTable(cmd.OutOrStdout(), list)
	},
}

func writeCandidateTable(w io.Writer, list []candidate.Candidate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tJOB\tSTATE\tSTATUS\tUPDATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.JobID, c.State, c.Status, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

var candidatesCountsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Count candidates per enrichment state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.CountByState(ctx)
		if err != nil {
			return err
		}
		return writeCounts(cmd.OutOrStdout(), counts)
	},
}

// writeCounts prints non-zero counts in pipeline order.
func writeCounts(w io.Writer, counts map[candidate.State]int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tCOUNT")
	total := 0
	for _, s := range candidate.States() {
		if n := counts[s]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", s, n)
			total += n
		}
	}
	fmt.Fprintf(tw, "total\t%d\n", total)
	return tw.Flush()
}

var candidatesRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Send a failed candidate back to the stage it failed in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		target, err := st.Retry(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], target)
		return nil
	},
}

var jobFile string

var candidatesAddJobCmd = &cobra.Command{
	Use:   "add-job",
	Short: "Create or update a job from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		job, err := loadJobFile(jobFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpsertJob(ctx, job); err != nil {
			return err
		}
		zap.L().Info("job saved", zap.String("job_id", job.ID), zap.Int("required_skills", len(job.RequiredSkills)))
		return printJSON(cmd.OutOrStdout(), job)
	},
}

// loadJobFile reads a job definition from YAML.
func loadJobFile(path string) (*candidate.Job, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrap(err, "read job file")
	}
	var job candidate.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, eris.Wrap(err, "parse job file")
	}
	if job.ID == "" || job.Title == "" {
		return nil, eris.New("job file needs id and title")
	}
	if job.MaxYearsExperience != nil && *job.MaxYearsExperience < job.MinYearsExperience {
		return nil, eris.Errorf("job %s: max_years_experience below min_years_experience", job.ID)
	}
	return &job, nil
}

var watchGroup string

var candidatesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream candidate stage transitions from Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		group := watchGroup
		if group == "" {
			group = "profiler-watch-" + uuid.NewString()[:8]
		}
		r, err := events.NewReader(cfg.Kafka, group)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return events.Subscribe(cmd.Context(), r, func(ev events.Event) error {
			_, err := fmt.Fprintln(out, formatEvent(ev))
			return err
		})
	},
}

func formatEvent(ev events.Event) string {
	line := fmt.Sprintf("%s  %s  %s: %s -> %s (%s)",
		ev.At.Format("15:04:05"), ev.CandidateID, ev.Stage, ev.From, ev.To, ev.Outcome)
	if ev.Error != "" {
		line += "  error=" + ev.Error
	}
	return line
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func init() {
	candidatesAddCmd.Flags().StringVar(&addName, "name", "", "candidate full name")
	candidatesAddCmd.Flags().StringVar(&addEmail, "email", "", "candidate email")
	candidatesAddCmd.Flags().StringVar(&addPhone, "phone", "", "candidate phone")
	candidatesAddCmd.Flags().StringVar(&addJobID, "job", "", "job ID the candidate applied to")
	candidatesAddCmd.Flags().StringVar(&addResume, "resume", "", "path to the résumé file (pdf, docx, txt, md)")
	_ = candidatesAddCmd.MarkFlagRequired("name")

	candidatesListCmd.Flags().StringVar(&listState, "state", "", "filter by enrichment state")
	candidatesListCmd.Flags().StringVar(&listJobID, "job", "", "filter by job ID")
	candidatesListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum candidates to list")

	candidatesAddJobCmd.Flags().StringVar(&jobFile, "file", "", "job definition YAML")
	_ = candidatesAddJobCmd.MarkFlagRequired("file")

	candidatesWatchCmd.Flags().StringVar(&watchGroup, "group", "", "consumer group (default: a new group per run)")

	candidatesCmd.AddCommand(candidatesAddCmd, candidatesGetCmd, candidatesListCmd,
		candidatesCountsCmd, candidatesRetryCmd, candidatesAddJobCmd, candidatesWatchCmd)
	rootCmd.AddCommand(candidatesCmd)
}
