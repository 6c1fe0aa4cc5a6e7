package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/autoblog"
	"github.com/eringen/autoblog/sources"
)

var (
	authorFlag string
	ratingFlag int
	bodyFlag   string
	titleFlag  string
	tagsFlag   []string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the customer reviews quoted in articles",
}

var reviewAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an approved customer review",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(bodyFlag) == "" {
			return fmt.Errorf("--body is required")
		}
		store, err := autoblog.NewStore(loaded.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		r := sources.Review{Author: authorFlag, Rating: ratingFlag, Body: bodyFlag}
		if err := store.SaveReview(cmd.Context(), r, true); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "review saved")
		return nil
	},
}

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledge base consulted for every article",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a knowledge base entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(titleFlag) == "" || strings.TrimSpace(bodyFlag) == "" {
			return fmt.Errorf("--title and --body are required")
		}
		store, err := autoblog.NewStore(loaded.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		e := sources.KnowledgeEntry{Title: titleFlag, Body: bodyFlag}
		if err := store.SaveKnowledge(cmd.Context(), e, autoblog.FilterEmpty(tagsFlag)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "knowledge entry saved")
		return nil
	},
}

func init() {
	reviewAddCmd.Flags().StringVar(&authorFlag, "author", "", "Reviewer name")
	reviewAddCmd.Flags().IntVar(&ratingFlag, "rating", 5, "Rating from 1 to 5")
	reviewAddCmd.Flags().StringVar(&bodyFlag, "body", "", "Review text")
	reviewCmd.AddCommand(reviewAddCmd)

	knowledgeAddCmd.Flags().StringVar(&titleFlag, "title", "", "Entry title")
	knowledgeAddCmd.Flags().StringVar(&bodyFlag, "body", "", "Entry text")
	knowledgeAddCmd.Flags().StringSliceVar(&tagsFlag, "tag", nil, "Tag (repeatable or comma separated)")
	knowledgeCmd.AddCommand(knowledgeAddCmd)
}
