package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/d3v1l1989/embywatch/internal/classify"
	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver"
	"github.com/d3v1l1989/embywatch/internal/service"
	"github.com/d3v1l1989/embywatch/internal/tui"
	"github.com/d3v1l1989/embywatch/internal/tui/styles"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.EmbyGreen).Padding(0, 1)

var detectCmd = &cobra.Command{
	Use:   "detect [url]",
	Short: "Detect whether a server runs Emby or Jellyfin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := ""
		if len(args) == 1 {
			url = strings.TrimRight(args[0], "/")
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url = cfg.Server.URL
		}
		if url == "" {
			return fmt.Errorf("no server url given and server.url is not set")
		}

		info, err := mediaserver.FetchPublicInfo(cmd.Context(), url)
		if err != nil {
			return err
		}
		serverType, err := mediaserver.DetectServerType(cmd.Context(), url)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", styles.SuccessStyle.Render("✓"), serverType.DisplayName())
		fmt.Printf("  Name:    %s\n", info.ServerName)
		fmt.Printf("  Version: %s\n", info.Version)
		fmt.Printf("  ID:      %s\n", info.ID)
		return nil
	},
}

var askPassword bool

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authenticate against the configured server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if askPassword {
			if cfg.Server.Username == "" {
				return fmt.Errorf("--ask-password needs server.username")
			}
			fmt.Printf("Password for %s: ", cfg.Server.Username)
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			cfg.Server.APIKey = ""
			cfg.Server.Password = string(pw)
		}

		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		cred, err := a.Session.Ensure(cmd.Context())
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%s authentication failed: %v\n", styles.ErrorStyle.Render("✗"), err)
			return err
		}

		info, err := a.Client.FetchSystemInfo(cmd.Context(), cred)
		if err != nil {
			return err
		}

		fmt.Printf("%s connected to %s (%s %s)\n", styles.SuccessStyle.Render("✓"),
			info.ServerName, a.Client.ServerType().DisplayName(), info.Version)
		fmt.Printf("  Auth:     %s\n", cred.Source)
		if !cred.Expiry.IsZero() {
			fmt.Printf("  Expires:  %s\n", humanize.Time(cred.Expiry))
		}
		fmt.Printf("  Response: %d ms\n", elapsed.Milliseconds())
		return nil
	},
}

var libraryFilter string

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "Show the library statistics the dashboard would display",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		a.Library.Invalidate()
		snapshot, err := a.Library.LibraryStats(cmd.Context())
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(styles.DimStyle).
			Headers("", "LIBRARY", "ITEMS", "MOVIES", "SERIES", "EPISODES", "ID").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})

		total := 0
		for _, stats := range service.SortLibraries(snapshot) {
			if libraryFilter != "" &&
				!fuzzy.MatchFold(libraryFilter, stats.DisplayName) &&
				!fuzzy.MatchFold(libraryFilter, stats.Name) {
				continue
			}
			episodes := "-"
			if stats.EpisodeCount != nil {
				episodes = humanize.Comma(int64(*stats.EpisodeCount))
			}
			t.Row(
				stats.Emoji,
				stats.DisplayName,
				humanize.Comma(int64(stats.ItemCount)),
				humanize.Comma(int64(stats.MovieCount)),
				humanize.Comma(int64(stats.SeriesCount)),
				episodes,
				stats.LibraryID,
			)
			total += stats.ItemCount
		}

		fmt.Println(t.Render())
		fmt.Printf("%s items\n", humanize.Comma(int64(total)))
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active streams",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := service.Do(cmd.Context(), a.Session, func(cred domain.Credential) ([]domain.Session, error) {
			return a.Client.FetchSessions(cmd.Context(), cred)
		})
		if err != nil {
			return err
		}

		active := domain.ActiveStreams(sessions)
		fmt.Printf("%d sessions, %d active stream%s\n", len(sessions), len(active), plural(len(active)))
		for i, s := range active {
			np := s.NowPlaying
			fmt.Printf("\n%d. %s\n", i+1, styles.TitleStyle.Render(np.Title()))
			fmt.Printf("   %s on %s (%s)\n", s.UserName, s.Client, s.DeviceName)
			fmt.Printf("   %s %.1f%%  %s\n", styles.RenderProgressBar(np.Progress(), 20), np.Progress(), np.Resolution())
		}
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <library name>...",
	Short: "Show the emoji picked for library names",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		c := classify.New()
		for _, name := range args {
			kw, ok := c.Match(name)
			if !ok {
				fmt.Printf("%s  %s (no keyword)\n", classify.DefaultEmoji, name)
				continue
			}
			fmt.Printf("%s  %s (matched %q)\n", kw.Emoji, name, kw.Term)
		}
	},
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Manage the sections block of the config file",
}

var syncByName bool

var sectionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Regenerate sections from the server's libraries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		byName := syncByName || a.Client.ServerType() == domain.ServerTypeJellyfin
		sections, err := a.Library.SyncSections(cmd.Context(), byName)
		if err != nil {
			return err
		}
		if err := config.SaveSections(cfg, sections); err != nil {
			return err
		}

		keys := make([]string, 0, len(sections.Sections))
		for key := range sections.Sections {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sc := sections.Sections[key]
			fmt.Printf("%s  %s (%s)\n", sc.Emoji, sc.DisplayName, key)
		}
		fmt.Printf("%s wrote %d sections to %s\n", styles.SuccessStyle.Render("✓"), len(keys), cfg.File)

		// Rebuild the stored snapshot so the bot starts with the new sections
		a.Library.SetSections(sections)
		snapshot, err := a.Library.LibraryStats(cmd.Context())
		if err != nil {
			fmt.Printf("%s library stats not refreshed: %v\n", styles.ErrorStyle.Render("✗"), err)
			return nil
		}
		fmt.Printf("%s %d libraries counted with the new sections\n", styles.SuccessStyle.Render("✓"), len(snapshot))
		return nil
	},
}

var sectionsEpisodesCmd = &cobra.Command{
	Use:       "episodes on|off",
	Short:     "Show or hide episode counts for every section",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(_ *cobra.Command, args []string) error {
		on, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Sections.Sections) == 0 {
			return fmt.Errorf("no sections configured, run 'sections sync' first")
		}
		if err := config.SaveSections(cfg, cfg.Sections.WithEpisodes(on)); err != nil {
			return err
		}
		fmt.Printf("%s episode counts %s for %d sections\n", styles.SuccessStyle.Render("✓"), args[0], len(cfg.Sections.Sections))
		return nil
	},
}

var previewInterval time.Duration

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the dashboard live in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		model := tui.NewModel(a.Monitor.BuildDashboard, previewInterval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err = p.Run()
		return err
	},
}

func init() {
	connectCmd.Flags().BoolVar(&askPassword, "ask-password", false, "prompt for the password instead of using the config")
	librariesCmd.Flags().StringVar(&libraryFilter, "filter", "", "only show libraries fuzzily matching this text")
	sectionsSyncCmd.Flags().BoolVar(&syncByName, "by-name", false, "key sections by library name instead of ID")
	previewCmd.Flags().DurationVar(&previewInterval, "interval", 30*time.Second, "refresh interval")

	sectionsCmd.AddCommand(sectionsSyncCmd, sectionsEpisodesCmd)
	rootCmd.AddCommand(detectCmd, connectCmd, librariesCmd, sessionsCmd, classifyCmd, sectionsCmd, previewCmd)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("expected on or off, got %q", s)
		}
		return b, nil
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
