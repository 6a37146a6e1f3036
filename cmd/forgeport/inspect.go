package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/render"
	"github.com/forgeport/forgeport/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [issue-iid]",
	Short: "Browse an exported snapshot before importing it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		w := getWriter(cmd)

		snap, err := store.ReadSnapshot(cfg.Transfer.ExportDir)
		if err != nil {
			return cmdErr(fmt.Errorf("no usable snapshot in %s, run export first: %w", cfg.Transfer.ExportDir, err), output.ErrNotFound)
		}

		if len(args) == 1 {
			iid, err := strconv.Atoi(args[0])
			if err != nil {
				return cmdErr(fmt.Errorf("invalid issue iid %q", args[0]), output.ErrValidation)
			}
			return showIssue(w, snap, iid)
		}

		if w.JSONMode {
			w.Success(importPlan(snap), "")
			return nil
		}

		fmt.Fprintln(w.Stdout, render.CountsTable(
			fmt.Sprintf("Snapshot of %s (exported %s)", snap.Project.GitLabName, render.Age(snap.Project.ExportedAt)),
			planRows(snap)))

		if len(snap.Issues) > 0 {
			fmt.Fprintln(w.Stdout)
			for _, issue := range snap.Issues {
				fmt.Fprintln(w.Stdout, render.TitleLine(issue.IID, issue.Title, string(issue.State), issue.UpdatedAt))
			}
		}
		return nil
	},
}

func showIssue(w *output.Writer, snap *model.Snapshot, iid int) error {
	var issue *model.Issue
	for _, candidate := range snap.Issues {
		if candidate.IID == iid {
			issue = candidate
			break
		}
	}
	if issue == nil {
		return cmdErr(fmt.Errorf("issue #%d is not in the snapshot", iid), output.ErrNotFound)
	}

	if w.JSONMode {
		w.Success(issue, "")
		return nil
	}

	fmt.Fprintln(w.Stdout, render.TitleLine(issue.IID, issue.Title, string(issue.State), issue.UpdatedAt))
	fmt.Fprintf(w.Stdout, "author:    %s\n", issue.Author.Mention())
	if len(issue.Labels) > 0 {
		fmt.Fprintf(w.Stdout, "labels:    %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.Milestone != "" {
		fmt.Fprintf(w.Stdout, "milestone: %s\n", issue.Milestone)
	}
	fmt.Fprintf(w.Stdout, "comments:  %d\n", len(issue.Comments))

	if issue.Description != "" {
		body, err := render.Markdown(issue.Description)
		if err != nil {
			body = issue.Description
		}
		fmt.Fprintf(w.Stdout, "\n%s\n", body)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
