package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/creatorswipe/internal/config"
	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/pitch"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/storage"
)

// --- profiles ---

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List, create and inspect creator profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles in feed order",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listProfiles(cmd.Context(), client, cmd.OutOrStdout())
	},
}

var profilesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile",
	Long: `Create a profile.

Examples:
  creatorswipe profiles create --name "Alex Chen" --project "EcoTrack" \
      --description "Carbon footprint tracker" --tags sustainability,mobile
  creatorswipe profiles create --name "Sarah Kim" --project "MindfulMe" \
      --description-file ./pitch.pdf --video https://example.com/pitch.mp4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		project, _ := cmd.Flags().GetString("project")
		description, _ := cmd.Flags().GetString("description")
		descFile, _ := cmd.Flags().GetString("description-file")
		video, _ := cmd.Flags().GetString("video")
		tags, _ := cmd.Flags().GetString("tags")

		if descFile != "" {
			if description != "" {
				return fmt.Errorf("--description and --description-file are mutually exclusive")
			}
			text, err := pitch.ReadDescription(descFile)
			if err != nil {
				return err
			}
			description = text
		}

		d := profile.Draft{
			Name:        name,
			Project:     project,
			Description: description,
			VideoURL:    video,
			Tags:        profile.ParseTags(tags),
		}
		if err := profile.Validate(profile.Normalize(d)); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := createProfile(cmd.Context(), client, d)
		if err != nil {
			return err
		}
		printSuccess("Created profile %s", id)
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a profile with its like/reject counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showProfile(cmd.Context(), client, args[0], cmd.OutOrStdout())
	},
}

func init() {
	profilesCreateCmd.Flags().String("name", "", "creator name")
	profilesCreateCmd.Flags().String("project", "", "project title")
	profilesCreateCmd.Flags().String("description", "", "project description")
	profilesCreateCmd.Flags().String("description-file", "", "read the description from a text or PDF file")
	profilesCreateCmd.Flags().String("video", "", "pitch video URL")
	profilesCreateCmd.Flags().String("tags", "", "comma-separated tags")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesCreateCmd)
	profilesCmd.AddCommand(profilesShowCmd)
}

func listProfiles(ctx context.Context, client *apiClient, w io.Writer) error {
	resp, err := client.get(ctx, "/api/profiles")
	if err != nil {
		return err
	}
	var rs []profile.Record
	if err := decodeJSON(resp, &rs); err != nil {
		return err
	}
	if len(rs) == 0 {
		fmt.Fprintln(w, "No profiles found.")
		return nil
	}
	for _, r := range rs {
		fmt.Fprintf(w, "%s  %s  %s\n", colorize(colorCyan, shortID(string(r.ID))), colorize(colorBold, r.Name), r.Project)
		if len(r.Tags) > 0 {
			fmt.Fprintf(w, "    tags: %s\n", strings.Join(r.Tags, ", "))
		}
	}
	return nil
}

func createProfile(ctx context.Context, client *apiClient, d profile.Draft) (string, error) {
	resp, err := client.post(ctx, "/api/profiles", d)
	if err != nil {
		return "", err
	}
	var result struct {
		Message string `json:"message"`
		ID      string `json:"id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func showProfile(ctx context.Context, client *apiClient, id string, w io.Writer) error {
	resp, err := client.get(ctx, "/api/profiles/"+id)
	if err != nil {
		return err
	}
	var p struct {
		profile.Record
		storage.DecisionCounts
	}
	if err := decodeJSON(resp, &p); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, p.Name), colorize(colorCyan, string(p.ID)))
	fmt.Fprintf(w, "  Project:     %s\n", p.Project)
	fmt.Fprintf(w, "  Description: %s\n", p.Description)
	if p.HasVideo() {
		fmt.Fprintf(w, "  Video:       %s\n", p.VideoURL)
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(w, "  Tags:        %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(w, "  Likes:       %d\n", p.Likes)
	fmt.Fprintf(w, "  Rejects:     %d\n", p.Rejects)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- match ---

var matchCmd = &cobra.Command{
	Use:   "match <idea>",
	Short: "Rank existing ideas by similarity to a new idea",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return matchIdea(cmd.Context(), client, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func matchIdea(ctx context.Context, client *apiClient, idea string, w io.Writer) error {
	resp, err := client.post(ctx, "/api/match", map[string]string{"new_idea": idea})
	if err != nil {
		return err
	}
	var result struct {
		NewIdea  string            `json:"new_idea"`
		Rankings []matcher.Ranking `json:"rankings"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	if len(result.Rankings) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	for i, r := range result.Rankings {
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, colorize(colorBold, fmt.Sprintf("%5.1f", r.Similarity)), r.Username)
		fmt.Fprintf(w, "    %s\n", r.Idea)
	}
	return nil
}

// --- decisions ---

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect recorded like/reject decisions",
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listDecisions(cmd.Context(), client, limit, cmd.OutOrStdout())
	},
}

func init() {
	decisionsListCmd.Flags().Int("limit", 20, "maximum number of decisions to list")
	decisionsCmd.AddCommand(decisionsListCmd)
}

func listDecisions(ctx context.Context, client *apiClient, limit int, w io.Writer) error {
	resp, err := client.get(ctx, fmt.Sprintf("/api/decisions?limit=%d", limit))
	if err != nil {
		return err
	}
	var page struct {
		Decisions []storage.Decision `json:"decisions"`
	}
	if err := decodeJSON(resp, &page); err != nil {
		return err
	}
	if len(page.Decisions) == 0 {
		fmt.Fprintln(w, "No decisions found.")
		return nil
	}
	for _, d := range page.Decisions {
		label := colorize(colorGreen, "like  ")
		if d.Decision == "reject" {
			label = colorize(colorRed, "reject")
		}
		fmt.Fprintf(w, "%s  %s  %s\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05"), label, d.ProfileID)
	}
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		keys := config.ShowAll(cfg)
		if asJSON {
			out := make(map[string]string, len(keys))
			for _, k := range keys {
				out[k.Key] = k.Value
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value or stored secret so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (" + strings.Join(config.SecretKeys(), ", ") + ") in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("json", false, "print as JSON")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
